package discovery

import (
	"testing"
)

func TestTXTRoundTrip(t *testing.T) {
	info := MaintenanceInfo{
		SessionID: "3f1c9a2e-1111-2222-3333-444455556666",
		Version:   "1.4.0",
		DeviceID:  0x0DA,
		LinkState: "Up",
	}

	decoded, err := DecodeTXT(EncodeTXT(info))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != info {
		t.Fatalf("round trip = %+v, want %+v", decoded, info)
	}
}

func TestDecodeTXTIgnoresUnknownKeys(t *testing.T) {
	records := []string{
		"session=abc",
		"future=whatever",
		"not-a-pair",
		"link=Down",
	}
	info, err := DecodeTXT(records)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if info.SessionID != "abc" || info.LinkState != "Down" {
		t.Fatalf("decoded %+v", info)
	}
}

func TestDecodeTXTBadDeviceID(t *testing.T) {
	if _, err := DecodeTXT([]string{"device=0xZZZ"}); err == nil {
		t.Fatal("expected an error for a malformed device id")
	}
}

func TestInstanceName(t *testing.T) {
	t.Run("derived from session", func(t *testing.T) {
		got := instanceName("", "3f1c9a2e-1111-2222")
		if got != "kioskbus-3f1c9a2e" {
			t.Fatalf("instance = %q", got)
		}
	})

	t.Run("configured wins", func(t *testing.T) {
		if got := instanceName("lobby-kiosk", "abc"); got != "lobby-kiosk" {
			t.Fatalf("instance = %q", got)
		}
	})

	t.Run("truncated to limit", func(t *testing.T) {
		long := make([]byte, 100)
		for i := range long {
			long[i] = 'x'
		}
		if got := instanceName(string(long), ""); len(got) != MaxInstanceNameLen {
			t.Fatalf("len = %d, want %d", len(got), MaxInstanceNameLen)
		}
	})
}

func TestNoopAdvertiser(t *testing.T) {
	var a Advertiser = NoopAdvertiser{}
	if err := a.Start(MaintenanceInfo{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.Update(MaintenanceInfo{}); err != nil {
		t.Fatalf("update: %v", err)
	}
	a.Stop()
	a.Stop()
}
