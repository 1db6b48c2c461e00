package service

import (
	"fmt"
	"testing"

	"github.com/serverestaa/instagram-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Every pool connection to :memory: is a distinct database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
	))
	return db
}

func TestCreatePrivateChatWritesChatAndBothParticipants(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	chat, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)
	require.NotZero(t, chat.ID)
	assert.True(t, chat.IsPrivate)

	var participants []models.ChatParticipant
	require.NoError(t, db.Where("chat_id = ?", chat.ID).Order("user_id").Find(&participants).Error)
	require.Len(t, participants, 2)
	assert.Equal(t, uint(1), participants[0].UserID)
	assert.Equal(t, uint(2), participants[1].UserID)
}

func TestCreatePrivateChatResolvesDuplicateToExisting(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	first, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)

	// Same pair in reverse order trips the pair_key unique index; the
	// conflict resolves to the existing chat instead of an error. The
	// in-memory SQLite pool is pinned to one connection, so the two
	// creates run serialized here; true cross-goroutine contention takes
	// the same duplicate-key path through the database.
	second, err := svc.CreatePrivateChat(2, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "at most one private chat per pair")
}

func TestFindPrivateChatMatchesExactPairOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	created, err := svc.CreatePrivateChat(1, 3)
	require.NoError(t, err)

	// A group chat sharing one of the two users must never match
	group := models.Chat{IsPrivate: false, Name: "everyone"}
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&[]models.ChatParticipant{
		{ChatID: group.ID, UserID: 1},
		{ChatID: group.ID, UserID: 2},
		{ChatID: group.ID, UserID: 4},
	}).Error)

	found, err := svc.FindPrivateChat(1, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := svc.FindPrivateChat(1, 2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	reversed, err := svc.FindPrivateChat(3, 1)
	require.NoError(t, err)
	require.NotNil(t, reversed)
	assert.Equal(t, created.ID, reversed.ID)
}

func TestEnsurePrivateChatCreatesOnceAndReuses(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	first, err := svc.EnsurePrivateChat(1, 2)
	require.NoError(t, err)

	second, err := svc.EnsurePrivateChat(2, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGroupChatsDoNotContendOnPairKey(t *testing.T) {
	db := newTestDB(t)

	// PairKey stays NULL for group chats, so the unique index never
	// rejects a second one
	require.NoError(t, db.Create(&models.Chat{IsPrivate: false, Name: "a"}).Error)
	require.NoError(t, db.Create(&models.Chat{IsPrivate: false, Name: "b"}).Error)

	var count int64
	require.NoError(t, db.Model(&models.Chat{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestAppendMessageToMissingChat(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	_, err := svc.AppendMessage(99, 1, "hello?")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestAppendMessageAssignsNonDecreasingTimestamps(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	chat, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)

	var last *models.Message
	for i := 0; i < 5; i++ {
		msg, err := svc.AppendMessage(chat.ID, 1, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		if last != nil {
			assert.False(t, msg.Timestamp.Before(last.Timestamp))
		}
		last = msg
	}
}

func TestPageMessagesOrderAndPaginationContract(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	chat, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.AppendMessage(chat.ID, 1, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	// Walking pages of 2 yields every message once, oldest first
	var contents []string
	for offset := 0; offset < 5; offset += 2 {
		page, err := svc.PageMessages(chat.ID, 2, offset)
		require.NoError(t, err)
		for _, m := range page {
			contents = append(contents, m.Content)
		}
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4"}, contents)
}

func TestPageMessagesDefaultLimit(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	chat, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)

	for i := 0; i < DefaultPageSize+5; i++ {
		_, err := svc.AppendMessage(chat.ID, 2, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	page, err := svc.PageMessages(chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, DefaultPageSize)
}

func TestListUserChatsWithParticipantCounts(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	private, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)

	group := models.Chat{IsPrivate: false, Name: "trio"}
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&[]models.ChatParticipant{
		{ChatID: group.ID, UserID: 1},
		{ChatID: group.ID, UserID: 3},
		{ChatID: group.ID, UserID: 4},
	}).Error)

	summaries, err := svc.ListUserChats(1)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[uint]models.ChatSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ChatID] = s
	}
	assert.Equal(t, 2, byID[private.ID].ParticipantCount)
	assert.Equal(t, 3, byID[group.ID].ParticipantCount)
	assert.Equal(t, "trio", byID[group.ID].Name)

	none, err := svc.ListUserChats(9)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIsParticipant(t *testing.T) {
	db := newTestDB(t)
	svc := NewChatService(db)

	chat, err := svc.CreatePrivateChat(1, 2)
	require.NoError(t, err)

	yes, err := svc.IsParticipant(chat.ID, 1)
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := svc.IsParticipant(chat.ID, 3)
	require.NoError(t, err)
	assert.False(t, no)
}
