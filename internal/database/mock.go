package database

import (
	"github.com/stretchr/testify/mock"
)

type MockMessengerRepository struct {
	mock.Mock
}

func (m *MockMessengerRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessengerRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockMessengerRepository) ListAccounts() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockMessengerRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessengerRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	args := m.Called(externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockMessengerRepository) ListConversationsForAccount(accountId int) ([]Conversation, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockMessengerRepository) ResetUnreadCount(conversationId, accountId int) error {
	args := m.Called(conversationId, accountId)
	return args.Error(0)
}
func (m *MockMessengerRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) GetMessageByExternalId(externalId string) (Message, error) {
	args := m.Called(externalId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) GetMessages(conversationId, since, before, limit int) ([]Message, error) {
	args := m.Called(conversationId, since, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockMessengerRepository) UpdateMessageBody(externalId, body string) (Message, error) {
	args := m.Called(externalId, body)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) DeleteMessage(externalId string) (Message, error) {
	args := m.Called(externalId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockMessengerRepository) AddReaction(messageExternalId string, accountId int, emoji string) (Message, error) {
	args := m.Called(messageExternalId, accountId, emoji)
	return args.Get(0).(Message), args.Error(1)
}
