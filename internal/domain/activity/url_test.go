package activity_test

import (
	"testing"

	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		valid bool
	}{
		{raw: "http://example.com/", want: "http://example.com/", valid: true},
		{raw: "HTTP://Example.COM", want: "http://example.com/", valid: true},
		{raw: "https://example.com:443/a?b=c", want: "https://example.com/a?b=c", valid: true},
		{raw: "http://example.com:8080/x", want: "http://example.com:8080/x", valid: true},
		{raw: "about:blank", want: "about:blank", valid: true},
		{raw: "not a url", valid: false},
		{raw: "/relative/path", valid: false},
		{raw: "http:///nohost", valid: false},
		{raw: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u := activity.ParseURL(tt.raw)
			require.Equal(t, tt.valid, u.IsValid())
			require.Equal(t, tt.want, u.String())
		})
	}
}
