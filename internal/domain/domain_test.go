package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleAbbreviations(t *testing.T) {
	abbr, ok := RoleManager.Abbreviation()
	require.True(t, ok)
	assert.Equal(t, "MGR", abbr)

	_, ok = RoleCustomer.Abbreviation()
	assert.False(t, ok)
	assert.False(t, RoleCustomer.IsStaff())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("wizard").Valid())
	assert.Len(t, StaffRoles, 9)
	for _, r := range StaffRoles {
		assert.True(t, r.IsStaff(), r)
	}
}

func TestFormatEmployeeID(t *testing.T) {
	assert.Equal(t, "OG/MGR/001", FormatEmployeeID("MGR", 1))
	assert.Equal(t, "OG/SPN/042", FormatEmployeeID("SPN", 42))
	assert.Equal(t, "OG/ADM/1000", FormatEmployeeID("ADM", 1000))
}

func TestEmployeeIDNumber(t *testing.T) {
	cases := map[string]struct {
		n  int
		ok bool
	}{
		"OG/CSR/003":  {3, true},
		"OG/CSR/foo":  {0, false},
		"OG/CSR":      {0, false},
		"OG/CSR/-4":   {0, false},
		"OG/CSR/12/x": {12, true},
		"OG/CSR/0000": {0, true},
		"":            {0, false},
	}
	for in, want := range cases {
		n, ok := EmployeeIDNumber(in)
		assert.Equal(t, want.ok, ok, in)
		assert.Equal(t, want.n, n, in)
	}
}

func TestNextEmployeeNumberSkipsMalformed(t *testing.T) {
	assert.Equal(t, 1, NextEmployeeNumber(nil))
	assert.Equal(t, 1, NextEmployeeNumber([]string{"OG/CSR/foo"}))
	assert.Equal(t, 8, NextEmployeeNumber([]string{"OG/CSR/foo", "OG/CSR/003", "OG/CSR/007"}))
}

func TestEmployeeIDAbbreviation(t *testing.T) {
	abbr, ok := EmployeeIDAbbreviation("OG/SPN/004")
	require.True(t, ok)
	assert.Equal(t, "SPN", abbr)

	_, ok = EmployeeIDAbbreviation("EMP-12")
	assert.False(t, ok)
	_, ok = EmployeeIDAbbreviation("")
	assert.False(t, ok)
}

func TestCanonicalRoomName(t *testing.T) {
	cases := map[string]string{
		"Sales Team":         "sales-team",
		"  --Ops!!  Room-- ": "ops-room",
		"project_42":         "project_42",
		"Général":            "g-n-ral",
		"a---b":              "a-b",
	}
	for in, want := range cases {
		got, err := CanonicalRoomName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := CanonicalRoomName(" !!! ")
	assert.ErrorIs(t, err, ErrEmptyRoomName)
}

func TestExtractMentions(t *testing.T) {
	assert.Equal(t, []string{"u2", "john_doe"}, ExtractMentions("hello @u2 and @john_doe, bye @u2"))
	assert.Nil(t, ExtractMentions("no mentions here @ all"))
	assert.Equal(t, []string{"bob"}, ExtractMentions("ping @bob!"))
}

func TestValidEmoji(t *testing.T) {
	assert.True(t, ValidEmoji("👍"))
	assert.True(t, ValidEmoji("❤️"))
	assert.False(t, ValidEmoji("🍕"))
	assert.False(t, ValidEmoji(""))
}

func TestActivityWindows(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	room := "room-1"
	a := Activity{Online: true, LastActivity: now.Add(-9 * time.Minute), Typing: true, TypingRoomID: &room, LastTypingUpdate: now.Add(-2 * time.Second)}

	assert.True(t, a.IsOnline(now))
	assert.True(t, a.IsTypingIn(room, now))
	assert.False(t, a.IsTypingIn("room-2", now))
	assert.False(t, a.IsTypingIn(room, now.Add(2*time.Second)))
	assert.False(t, a.IsOnline(now.Add(2*time.Minute)))
}

func TestChatBanActive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.False(t, (&User{}).ChatBanActive(now))
	assert.True(t, (&User{BannedFromChat: true}).ChatBanActive(now))
	assert.True(t, (&User{BannedFromChat: true, BanExpiresAt: &future}).ChatBanActive(now))
	assert.False(t, (&User{BannedFromChat: true, BanExpiresAt: &past}).ChatBanActive(now))
}

func TestDepartmentGroups(t *testing.T) {
	assert.Equal(t, []string{"technical", "technician"}, DepartmentGroups("Technical Support"))
	assert.Equal(t, []string{"customer-service", "support"}, DepartmentGroups("Customer Service"))
	assert.Equal(t, []string{"legal-affairs"}, DepartmentGroups("Legal Affairs"))
	assert.Nil(t, DepartmentGroups("  "))
}
