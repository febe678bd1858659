package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"todohabit/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	p := NewJWTProvider("s3cret", "todohabit-auth")
	ident := model.Identity{ID: "u1", Email: "ada@example.com", DisplayName: "Ada", PhotoURL: "https://example.com/a.png"}

	token, err := p.Issue(ident, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := p.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if *got != ident {
		t.Errorf("Parse = %+v, want %+v", *got, ident)
	}
}

func TestParseRejects(t *testing.T) {
	p := NewJWTProvider("s3cret", "todohabit-auth")
	other := NewJWTProvider("different", "todohabit-auth")
	wrongIssuer := NewJWTProvider("s3cret", "someone-else")
	ident := model.Identity{ID: "u1"}

	badSig, _ := other.Issue(ident, time.Hour)
	badIss, _ := wrongIssuer.Issue(ident, time.Hour)
	expired, _ := p.Issue(ident, -time.Minute)
	noSubject, _ := p.Issue(model.Identity{}, time.Hour)

	tests := map[string]string{
		"garbage":       "not-a-token",
		"bad signature": badSig,
		"wrong issuer":  badIss,
		"expired":       expired,
		"no subject":    noSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := p.Parse(token); !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("Parse error = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := ExtractToken(r); got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestHolderNotifiesOnUserChangeOnly(t *testing.T) {
	h := NewHolder()
	var seen []string
	unsubscribe := h.OnChange(func(ctx context.Context, ident *model.Identity) {
		if ident == nil {
			seen = append(seen, "<nil>")
			return
		}
		seen = append(seen, ident.ID)
	})
	ctx := context.Background()

	h.Set(ctx, &model.Identity{ID: "u1"})
	h.Set(ctx, &model.Identity{ID: "u1", DisplayName: "renamed"})
	h.Set(ctx, &model.Identity{ID: "u2"})
	h.Set(ctx, nil)
	h.Set(ctx, nil)

	want := []string{"u1", "u2", "<nil>"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	unsubscribe()
	h.Set(ctx, &model.Identity{ID: "u3"})
	if len(seen) != 3 {
		t.Error("listener called after unsubscribe")
	}
	if h.Current().ID != "u3" {
		t.Errorf("Current = %+v", h.Current())
	}
}
