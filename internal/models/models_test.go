package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestBaseModelGeneratesID(t *testing.T) {
	m := &BaseModel{}
	require.NoError(t, m.BeforeCreate(&gorm.DB{}))
	require.NotEmpty(t, m.ID)

	seeded := &BaseModel{ID: "fixed"}
	require.NoError(t, seeded.BeforeCreate(&gorm.DB{}))
	require.Equal(t, "fixed", seeded.ID)
}

func TestLoginLinkUsable(t *testing.T) {
	now := time.Now()
	link := &LoginLink{ExpiresAt: now.Add(time.Minute)}
	require.True(t, link.Usable(now))

	used := now.Add(-time.Second)
	link.UsedAt = &used
	require.False(t, link.Usable(now))

	expired := &LoginLink{ExpiresAt: now.Add(-time.Minute)}
	require.False(t, expired.Usable(now))
}

func TestValidCommandType(t *testing.T) {
	require.True(t, ValidCommandType("take_photo"))
	require.True(t, ValidCommandType("reboot"))
	require.False(t, ValidCommandType("format_disk"))
	require.False(t, ValidCommandType(""))
}
