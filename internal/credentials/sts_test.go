package credentials

import "testing"

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		wantErr bool
	}{
		{"one hour", 3600, false},
		{"minimum", 900, false},
		{"maximum", 129600, false},
		{"below minimum", 899, true},
		{"above maximum", 129601, true},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := validateDuration(test.seconds)
			if (err != nil) != test.wantErr {
				t.Fatalf("validateDuration(%d) err=%v wantErr=%v", test.seconds, err, test.wantErr)
			}
		})
	}
}

func TestIdentityName(t *testing.T) {
	tests := []struct {
		arn  string
		want string
	}{
		{"arn:aws:iam::123456789012:user/demo-user", "demo-user"},
		{"arn:aws:sts::123456789012:assumed-role/admin/session", "session"},
		{"root", "root"},
	}

	for _, test := range tests {
		id := Identity{ARN: test.arn}
		if got := id.Name(); got != test.want {
			t.Errorf("Name(%q)=%q want %q", test.arn, got, test.want)
		}
	}
}
