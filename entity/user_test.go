package entity

import "testing"

func TestPlaceholderEmailDeterministic(t *testing.T) {
	cases := []struct {
		platform Platform
		id       string
		want     string
	}{
		{PlatformInstagram, "17841400000", "ig_17841400000@instagram.placeholder"},
		{PlatformFacebook, "9001", "fb_9001@facebook.placeholder"},
		{PlatformWhatsApp, "905551112233", "wa_905551112233@whatsapp.placeholder"},
		{PlatformInternal, "x", "ext_x@external.placeholder"},
	}

	for _, tc := range cases {
		if got := PlaceholderEmail(tc.platform, tc.id); got != tc.want {
			t.Errorf("%s/%s: got %q, want %q", tc.platform, tc.id, got, tc.want)
		}
	}
}

func TestNewVisitorIsClient(t *testing.T) {
	visitor := NewVisitor("t1", PlatformInstagram, "9001", "Ali")

	if visitor.Role != ClientRole {
		t.Errorf("visitors are CLIENT users, got %q", visitor.Role)
	}
	if visitor.Email != PlaceholderEmail(PlatformInstagram, "9001") {
		t.Errorf("visitor email must be the deterministic placeholder, got %q", visitor.Email)
	}
	if visitor.PlatformUserID != "9001" || visitor.Platform != PlatformInstagram {
		t.Errorf("visitor must keep its platform identity: %+v", visitor)
	}
}
