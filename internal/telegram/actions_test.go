package telegram

import (
	"testing"

	"github.com/go-telegram/bot/models"
)

func TestMemberUser(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		member *models.ChatMember
		wantID int64
	}{
		{
			name:   "owner",
			member: &models.ChatMember{Owner: &models.ChatMemberOwner{User: &models.User{ID: 1, FirstName: "Olga"}}},
			wantID: 1,
		},
		{
			// The administrator role carries its user by value, unlike
			// the other roles.
			name:   "administrator",
			member: &models.ChatMember{Administrator: &models.ChatMemberAdministrator{User: models.User{ID: 2, FirstName: "Ada"}}},
			wantID: 2,
		},
		{
			name:   "plain member",
			member: &models.ChatMember{Member: &models.ChatMemberMember{User: &models.User{ID: 3, FirstName: "Milo"}}},
			wantID: 3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			user := memberUser(tc.member)
			if user == nil {
				t.Fatalf("memberUser() = nil, want user with id %d", tc.wantID)
			}
			if user.ID != tc.wantID {
				t.Errorf("memberUser().ID = %d, want %d", user.ID, tc.wantID)
			}
		})
	}

	t.Run("no role set", func(t *testing.T) {
		t.Parallel()

		if user := memberUser(&models.ChatMember{}); user != nil {
			t.Errorf("memberUser() = %+v, want nil", user)
		}
	})
}

func TestTokenPrefix(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		token string
		want  string
	}{
		{name: "long token is truncated", token: "123456789:AAF-abcdef", want: "12345678..."},
		{name: "exactly eight characters", token: "12345678", want: "12345678..."},
		{name: "short token stays whole", token: "abc", want: "abc..."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tokenPrefix(tc.token); got != tc.want {
				t.Errorf("tokenPrefix(%q) = %q, want %q", tc.token, got, tc.want)
			}
		})
	}
}
