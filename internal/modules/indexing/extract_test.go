package indexing

import (
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/itvault-backend/internal/domain/assets"
	"github.com/yungbote/itvault-backend/internal/domain/search"
)

func TestExtractProjections(t *testing.T) {
	pw := &assets.Password{Username: " admin ", URL: "https://fw.example", Notes: "rotate quarterly"}
	pw.Name = "Core firewall"
	pw.EncryptedPassword = []byte("s3cret")

	cfg := &assets.Configuration{SerialNumber: "SN-1", Manufacturer: "Dell", Model: "R740"}
	cfg.Name = "db01"

	loc := &assets.Location{City: "Berlin", Notes: "badge at front desk"}
	loc.Name = "HQ"

	doc := &assets.Document{Content: "\n  VPN setup steps  \n"}
	doc.Name = "VPN"

	cases := []struct {
		name string
		in   assets.Entity
		want string
	}{
		{"password", pw, "Core firewall\nadmin\nhttps://fw.example\nrotate quarterly"},
		{"configuration", cfg, "db01\nSN-1\nDell\nR740"},
		{"location", loc, "HQ\nBerlin\nbadge at front desk"},
		{"document", doc, "VPN\nVPN setup steps"},
	}
	for _, tc := range cases {
		got, err := ExtractSearchableText(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: want=%q got=%q", tc.name, tc.want, got)
		}
	}
}

func TestExtractCustomAssetFieldsSorted(t *testing.T) {
	ca := &assets.CustomAsset{Fields: datatypes.JSON(`{"vendor":" Acme ","contract":12345678901234567890,"tags":["a","",null,"b"],"blank":"","nothing":null,"meta":{"z":1,"a":true},"active":false}`)}
	ca.Name = "UPS"
	got, err := ExtractSearchableText(ca)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "UPS\nactive: false\ncontract: 12345678901234567890\nmeta: {\"a\":true,\"z\":1}\ntags: a, b\nvendor: Acme"
	if got != want {
		t.Fatalf("custom asset: want=%q got=%q", want, got)
	}

	again, _ := ExtractSearchableText(ca)
	if again != got {
		t.Fatalf("extraction not deterministic")
	}
}

func TestExtractCustomAssetEmptyAndInvalidFields(t *testing.T) {
	ca := &assets.CustomAsset{}
	ca.Name = "Empty"
	got, err := ExtractSearchableText(ca)
	if err != nil || got != "Empty" {
		t.Fatalf("empty fields: want=%q got=%q err=%v", "Empty", got, err)
	}

	ca.Fields = datatypes.JSON(`[1,2]`)
	if _, err := ExtractSearchableText(ca); err == nil {
		t.Fatalf("expected error for non-object fields")
	}
}

func TestExtractorRegistryComplete(t *testing.T) {
	if err := ValidateRegistry(); err != nil {
		t.Fatalf("ValidateRegistry: %v", err)
	}
	got := RegisteredTypes()
	if len(got) != len(search.AllEntityTypes) {
		t.Fatalf("registered: want=%d got=%d", len(search.AllEntityTypes), len(got))
	}
}

type unknownEntity struct{ assets.Base }

func (*unknownEntity) SearchEntityType() search.EntityType { return "ticket" }

type wrongModel struct{ assets.Base }

func (*wrongModel) SearchEntityType() search.EntityType { return search.EntityDocument }

func TestExtractDispatchErrors(t *testing.T) {
	if _, err := ExtractSearchableText(&unknownEntity{}); !errors.Is(err, ErrNoExtractor) {
		t.Fatalf("unknown type: want ErrNoExtractor got %v", err)
	}
	if _, err := ExtractSearchableText(&wrongModel{}); !errors.Is(err, ErrExtractorTypeMismatch) {
		t.Fatalf("wrong model: want ErrExtractorTypeMismatch got %v", err)
	}
}
