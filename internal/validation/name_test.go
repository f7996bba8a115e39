package validation

import "testing"

func TestValidCapabilityName(t *testing.T) {
	valid := []string{
		"withdraw",
		"deposit",
		"balance:read",
		"accounts.list",
		"a",
		"user_data:read",
		"x1-y2",
	}
	for _, name := range valid {
		if !ValidCapabilityName(name) {
			t.Errorf("%q rejected", name)
		}
	}

	invalid := []string{
		"",
		"Withdraw",
		"with draw",
		":read",
		"read:",
		"-read",
		"read-",
		"käyttö",
		string(make([]byte, 70)),
	}
	for _, name := range invalid {
		if ValidCapabilityName(name) {
			t.Errorf("%q accepted", name)
		}
	}
}

func TestValidApplicationName(t *testing.T) {
	if !ValidApplicationName("frontend-app") || !ValidApplicationName("banking-api") {
		t.Fatal("demo names rejected")
	}
	if ValidApplicationName("") || ValidApplicationName("Banking API") {
		t.Fatal("bad names accepted")
	}
}
