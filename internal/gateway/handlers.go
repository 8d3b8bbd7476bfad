package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chatrelay/internal/domain"
	"chatrelay/internal/events"
	"chatrelay/internal/services"
	relay_errors "chatrelay/pkg/errors"
)

// Profile events.

func (g *Gateway) handleGetProfile(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	userID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	profile, err := g.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return profileResponse{Profile: profile}, nil
}

func (g *Gateway) handleUpdateProfile(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var patch domain.ProfilePatch
	if err := decodeInto(data, &patch); err != nil {
		return nil, err
	}
	profile, err := g.profiles.Update(ctx, c.UserID, patch)
	if err != nil {
		return nil, err
	}
	return profileResponse{Profile: profile}, nil
}

func (g *Gateway) handleSearchUsers(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	query, err := decodeString(data)
	if err != nil {
		return nil, err
	}
	users, err := g.profiles.SearchUsers(ctx, query, c.UserID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.Profile{}
	}
	return usersResponse{Users: users}, nil
}

// Room events.

func (g *Gateway) handleCreateRoom(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req createRoomRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	room, err := g.rooms.CreateRoom(ctx, c.UserID, req.Name, req.Description, req.IsPrivate)
	if err != nil {
		return nil, err
	}
	g.hub.Subscribe(c, events.RoomChannel(room.ID))
	c.TrackRoom(room.ID)
	return roomResponse{Room: room}, nil
}

func (g *Gateway) handleSearchRooms(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	query, err := decodeString(data)
	if err != nil {
		return nil, err
	}
	rooms, err := g.rooms.SearchRooms(ctx, query)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return roomsResponse{Rooms: rooms}, nil
}

func (g *Gateway) handleJoinRoom(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	roomID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	joined, err := g.rooms.JoinRoom(ctx, c.UserID, roomID)
	if err != nil {
		return nil, err
	}

	if joined {
		// Announce before subscribing so the joiner does not receive their
		// own arrival.
		if profile, err := g.profiles.Get(ctx, c.UserID); err == nil {
			g.publish(ctx, events.RoomChannel(roomID), events.EventUserJoinedRoom, roomPresencePush{RoomID: roomID, User: profile})
		}
	}
	g.hub.Subscribe(c, events.RoomChannel(roomID))
	c.TrackRoom(roomID)
	return okResponse{Success: true}, nil
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	roomID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	left, err := g.rooms.LeaveRoom(ctx, c.UserID, roomID)
	if err != nil {
		return nil, err
	}

	g.hub.Unsubscribe(c, events.RoomChannel(roomID))
	c.ForgetRoom(roomID)
	if left {
		if profile, err := g.profiles.Get(ctx, c.UserID); err == nil {
			g.publish(ctx, events.RoomChannel(roomID), events.EventUserLeftRoom, roomPresencePush{RoomID: roomID, User: profile})
		}
	}
	return okResponse{Success: left}, nil
}

func (g *Gateway) handleGetRooms(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	rooms, err := g.rooms.ListUserRooms(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	for _, room := range rooms {
		g.hub.Subscribe(c, events.RoomChannel(room.ID))
		c.TrackRoom(room.ID)
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return roomsResponse{Rooms: rooms}, nil
}

func (g *Gateway) handleDeleteRoom(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	roomID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	if err := g.rooms.DeleteRoom(ctx, c.UserID, roomID); err != nil {
		return nil, err
	}

	g.publish(ctx, events.RoomChannel(roomID), events.EventRoomDeleted, roomDeletedPush{RoomID: roomID, DeletedBy: c.UserID})
	g.hub.Unsubscribe(c, events.RoomChannel(roomID))
	c.ForgetRoom(roomID)
	return okResponse{Success: true}, nil
}

func (g *Gateway) handleGetUserRole(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	roomID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	role, err := g.rooms.GetUserRoleInRoom(ctx, c.UserID, roomID)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return roleResponse{Role: "unknown"}, nil
		}
		return nil, err
	}
	return roleResponse{Role: string(role)}, nil
}

func (g *Gateway) handleUpdateRoom(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req updateRoomRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	patch := domain.RoomPatch{Name: req.Name, Description: req.Description, AvatarURL: req.AvatarURL}
	room, err := g.rooms.UpdateRoom(ctx, c.UserID, req.RoomID, patch)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, events.RoomChannel(room.ID), events.EventRoomUpdated, roomUpdatedPush{Room: room, UpdatedBy: c.UserID})
	return roomResponse{Room: room}, nil
}

func (g *Gateway) handleGetRoomMembers(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	roomID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	members, err := g.rooms.GetRoomMembers(ctx, c.UserID, roomID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.RoomMember{}
	}
	return membersResponse{Members: members}, nil
}

func (g *Gateway) handleInviteToRoom(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req inviteToRoomRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	if err := g.rooms.InviteUser(ctx, c.UserID, req.UserID, req.RoomID); err != nil {
		return nil, err
	}

	room, err := g.rooms.GetRoom(ctx, req.RoomID)
	if err != nil {
		return okResponse{Success: true}, nil
	}
	if inviter, err := g.profiles.Get(ctx, c.UserID); err == nil {
		g.publish(ctx, events.UserChannel(req.UserID), events.EventRoomInvitation, roomInvitationPush{Room: room, InvitedBy: inviter})
	}
	if invitee, err := g.profiles.Get(ctx, req.UserID); err == nil {
		g.publish(ctx, events.RoomChannel(req.RoomID), events.EventUserJoinedRoom, roomPresencePush{RoomID: req.RoomID, User: invitee})
	}

	// An invitee with a live connection starts receiving room traffic
	// immediately.
	if liveInvitee := g.hub.ClientForUser(req.UserID); liveInvitee != nil {
		g.hub.Subscribe(liveInvitee, events.RoomChannel(req.RoomID))
		liveInvitee.TrackRoom(req.RoomID)
	}
	return okResponse{Success: true}, nil
}

// Conversation events.

func (g *Gateway) handleStartConversation(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	otherUserID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	conversation, created, err := g.conversations.GetOrCreate(ctx, c.UserID, otherUserID)
	if err != nil {
		return nil, err
	}

	g.subscribeConversation(c, conversation)
	if created {
		if me, err := g.profiles.Get(ctx, c.UserID); err == nil {
			g.publish(ctx, events.UserChannel(otherUserID), events.EventNewConversation, newConversationPush{
				ConversationID: conversation.ID,
				OtherUser:      &me,
			})
		}
	}
	return conversationResponse{ConversationID: conversation.ID}, nil
}

func (g *Gateway) handleGetConversations(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	conversations, err := g.conversations.ListUserConversations(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	for _, conversation := range conversations {
		g.subscribeConversation(c, conversation)
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversationsResponse{Conversations: conversations}, nil
}

func (g *Gateway) handleDeleteConversation(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	conversationID, err := decodeUUID(data)
	if err != nil {
		return nil, err
	}
	if err := g.conversations.Delete(ctx, c.UserID, conversationID); err != nil {
		return nil, err
	}
	g.hub.Unsubscribe(c, events.ConversationChannel(conversationID))
	return okResponse{Success: true}, nil
}

// Message events.

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req sendMessageRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	chat := domain.ChatRef{Type: domain.ChatType(req.ChatType), ID: req.ChatID}
	media := services.MediaFields{URL: req.MediaURL, Type: req.MediaType, Name: req.MediaName, Size: req.MediaSize}

	message, err := g.messages.Send(ctx, c.UserID, chat, req.Content, domain.MessageType(req.MessageType), media, req.ReplyTo)
	if err != nil {
		return nil, err
	}

	g.publish(ctx, chat.Channel(), events.EventReceiveMessage, message)
	return messageResponse{Message: message}, nil
}

func (g *Gateway) handleGetMessages(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req getMessagesRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	chat := domain.ChatRef{Type: domain.ChatType(req.ChatType), ID: req.ChatID}

	var before *time.Time
	if req.Before != nil && *req.Before != "" {
		t, err := time.Parse(time.RFC3339, *req.Before)
		if err != nil {
			return nil, relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Invalid before cursor")
		}
		before = &t
	}

	messages, err := g.messages.List(ctx, c.UserID, chat, req.Limit, before)
	if err != nil {
		return nil, err
	}

	// Fetching a conversation's history counts as touching it, so the
	// session gets live delivery from here on.
	if chat.Type == domain.ChatTypeConversation {
		g.hub.Subscribe(c, events.ConversationChannel(chat.ID))
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messagesResponse{Messages: messages}, nil
}

func (g *Gateway) handleClearAllMessages(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	if err := g.messages.ClearAllFromSender(ctx, c.UserID); err != nil {
		return nil, err
	}
	return okResponse{Success: true}, nil
}

// Media and account events.

func (g *Gateway) handleGetUploadURL(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req getUploadURLRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	uploadURL, publicURL, err := g.uploads.SignUpload(ctx, req.Bucket, req.FileName)
	if err != nil {
		return nil, err
	}
	return uploadURLResponse{UploadURL: uploadURL, PublicURL: publicURL}, nil
}

func (g *Gateway) handleGenerateAvatar(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req generateAvatarRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, err
	}
	if req.Prompt == "" {
		req.Prompt = "avatar for " + c.Username
	}
	imageURL, err := g.avatars.Generate(ctx, req.Prompt, req.Style)
	if err != nil {
		return nil, err
	}
	return avatarResponse{ImageURL: imageURL}, nil
}

func (g *Gateway) handleDeleteAccount(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	if err := g.profiles.DeleteAccount(ctx, c.UserID); err != nil {
		return nil, err
	}
	// The connection has no identity left; close it once the response is
	// flushed.
	go func() {
		time.Sleep(500 * time.Millisecond)
		c.Close()
	}()
	return okResponse{Success: true}, nil
}

// Typing is fire-and-forget: errors are swallowed and the sender never hears
// back.
func (g *Gateway) handleTyping(ctx context.Context, c *Client, data json.RawMessage) (any, error) {
	var req typingRequest
	if err := decodeInto(data, &req); err != nil {
		return nil, nil
	}
	chat := domain.ChatRef{Type: domain.ChatType(req.ChatType), ID: req.ChatID}
	if !chat.Valid() {
		return nil, nil
	}

	push := userTypingPush{
		Username: c.Username,
		UserID:   c.UserID,
		ChatID:   req.ChatID,
		IsTyping: req.IsTyping,
	}
	if err := g.bus.PublishExcept(ctx, chat.Channel(), events.EventUserTyping, push, c.UserID.String()); err != nil {
		g.log.Warnf("typing publish to %s failed: %v", chat.Channel(), err)
	}
	return nil, nil
}

func (g *Gateway) publish(ctx context.Context, channel, event string, payload any) {
	if err := g.bus.Publish(ctx, channel, event, payload); err != nil {
		g.log.Warnf("publish %s to %s failed: %v", event, channel, err)
	}
}
