package models_test

import (
	"reflect"
	"testing"
	"time"

	"shelterlink/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Name: "Dana", Role: models.RoleHost}

	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	err := user.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	assert.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestUserBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID, Name: "Noa", Role: models.RoleSeeker}

	assert.NoError(t, user.BeforeCreate(nil))
	assert.Equal(t, existingID, user.ID)
}

func TestConnectionBeforeCreate_SetsPairKey(t *testing.T) {
	c := &models.Connection{RequesterID: "user_B", RecipientID: "user_A"}

	assert.NoError(t, c.BeforeCreate(nil))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "user_A:user_B", c.PairKey)
}

func TestPairKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, models.PairKey("a", "b"), models.PairKey("b", "a"))
	assert.NotEqual(t, models.PairKey("a", "b"), models.PairKey("a", "c"))
	assert.Equal(t, models.ConversationIDFor("x", "y"), models.ConversationIDFor("y", "x"))
}

func TestValidUserID(t *testing.T) {
	assert.True(t, models.ValidUserID(uuid.NewString()))
	assert.True(t, models.ValidUserID("host_1"))
	assert.False(t, models.ValidUserID(""))
	assert.False(t, models.ValidUserID("a:b"))
}

func TestConversationParticipants(t *testing.T) {
	a, b, ok := models.ConversationParticipants(models.ConversationIDFor("user_B", "user_A"))
	require.True(t, ok)
	assert.Equal(t, "user_A", a)
	assert.Equal(t, "user_B", b)

	for _, id := range []string{
		"made-up",
		"conv:",
		"conv:user_A",
		"conv:user_A:",
		"conv:a:b:c",
		"conv:user_B:user_A", // not in canonical order
	} {
		_, _, ok := models.ConversationParticipants(id)
		assert.False(t, ok, id)
	}
	assert.True(t, models.IsCanonicalConversationID("conv:a:b"))
	assert.False(t, models.IsCanonicalConversationID("c1"))
}

func TestConnection_OtherPartyAndInvolves(t *testing.T) {
	c := models.Connection{RequesterID: "A", RecipientID: "B"}

	assert.Equal(t, "B", c.OtherParty("A"))
	assert.Equal(t, "A", c.OtherParty("B"))
	assert.True(t, c.Involves("A"))
	assert.False(t, c.Involves("C"))
}

func TestConnectionStatus_Terminal(t *testing.T) {
	assert.False(t, models.ConnectionPending.Terminal())
	assert.True(t, models.ConnectionApproved.Terminal())
	assert.True(t, models.ConnectionRejected.Terminal())
}

func TestShelterOffer_ValidWindow(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	before := from.AddDate(0, 0, -1)

	open := models.ShelterOffer{AvailableFrom: from}
	closed := models.ShelterOffer{AvailableFrom: from, AvailableTo: &to}
	inverted := models.ShelterOffer{AvailableFrom: from, AvailableTo: &before}

	assert.True(t, open.ValidWindow())
	assert.True(t, closed.ValidWindow())
	assert.False(t, inverted.ValidWindow())
}

// TestStructTags verifies the gorm tags the storage layer relies on.
func TestStructTags(t *testing.T) {
	connType := reflect.TypeOf(models.Connection{})
	pairField, found := connType.FieldByName("PairKey")
	assert.True(t, found)
	assert.Contains(t, pairField.Tag.Get("gorm"), "uniqueIndex", "PairKey must be unique")

	shelterType := reflect.TypeOf(models.ShelterOffer{})
	tagsField, found := shelterType.FieldByName("Tags")
	assert.True(t, found)
	assert.Contains(t, tagsField.Tag.Get("gorm"), "type:text[]", "Tags should use PostgreSQL array type")

	userType := reflect.TypeOf(models.User{})
	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
	assert.Contains(t, idField.Tag.Get("json"), "id")
}

// BenchmarkUserBeforeCreate measures UUID generation performance.
func BenchmarkUserBeforeCreate(b *testing.B) {
	user := &models.User{Name: "benchmark_user"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		user.ID = ""
		_ = user.BeforeCreate(nil)
	}
}
