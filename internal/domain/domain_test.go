package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRoleOrdering(t *testing.T) {
	assert.True(t, RoleCreator.AtLeast(RoleAdmin))
	assert.True(t, RoleAdmin.AtLeast(RoleMember))
	assert.True(t, RoleMember.AtLeast(RoleMember))
	assert.False(t, RoleMember.AtLeast(RoleAdmin))
	assert.False(t, RoleAdmin.AtLeast(RoleCreator))

	assert.True(t, RoleCreator.Valid())
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").AtLeast(RoleMember))
}

func TestCanonicalPair(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	p1, p2 := CanonicalPair(a, b)
	q1, q2 := CanonicalPair(b, a)

	assert.Equal(t, p1, q1)
	assert.Equal(t, p2, q2)
	assert.True(t, p1.String() <= p2.String())
}

func TestChatRef(t *testing.T) {
	id := uuid.New()

	assert.True(t, ChatRef{Type: ChatTypeRoom, ID: id}.Valid())
	assert.True(t, ChatRef{Type: ChatTypeConversation, ID: id}.Valid())
	assert.False(t, ChatRef{Type: "group", ID: id}.Valid())
	assert.False(t, ChatRef{Type: ChatTypeRoom}.Valid())

	assert.Equal(t, "room:"+id.String(), ChatRef{Type: ChatTypeRoom, ID: id}.Channel())
}

func TestMessageChat(t *testing.T) {
	roomID := uuid.New()
	convID := uuid.New()

	roomMsg := Message{RoomID: &roomID}
	assert.Equal(t, ChatRef{Type: ChatTypeRoom, ID: roomID}, roomMsg.Chat())

	convMsg := Message{ConversationID: &convID}
	assert.Equal(t, ChatRef{Type: ChatTypeConversation, ID: convID}, convMsg.Chat())

	assert.False(t, Message{}.Chat().Valid())
}
