package disposisi

import (
	"strings"
	"testing"

	"github.com/sinorat/sinorat/internal/models"
)

func wellFormed() models.DisposisiPayload {
	return models.DisposisiPayload{
		LetterInID: "abc",
		NoDispo:    10,
		TglDispo:   "2025-01-01",
		DispoKe:    []string{"SEKRETARIAT"},
		IsiDispo:   "Mohon ditindaklanjuti segera",
	}
}

func TestValidateWellFormed(t *testing.T) {
	if reasons := Validate(wellFormed()); len(reasons) != 0 {
		t.Errorf("well-formed payload rejected: %v", reasons)
	}
}

func TestValidateAllRulesViolated(t *testing.T) {
	reasons := Validate(models.DisposisiPayload{
		LetterInID: "",
		NoDispo:    0,
		TglDispo:   "",
		DispoKe:    []string{},
		IsiDispo:   "short",
	})
	if len(reasons) < 5 {
		t.Fatalf("got %d reasons, want at least 5: %v", len(reasons), reasons)
	}
	seen := map[string]bool{}
	for _, r := range reasons {
		if seen[r] {
			t.Errorf("duplicate reason %q", r)
		}
		seen[r] = true
	}
	for _, field := range []string{"letterIn_id", "noDispo", "tglDispo", "dispoKe", "isiDispo"} {
		found := false
		for _, r := range reasons {
			if strings.HasPrefix(r, field+" ") {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no reason for field %s in %v", field, reasons)
		}
	}
}

func TestValidateSingleViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.DisposisiPayload)
		field  string
	}{
		{"missing letter", func(p *models.DisposisiPayload) { p.LetterInID = "" }, "letterIn_id"},
		{"zero number", func(p *models.DisposisiPayload) { p.NoDispo = 0 }, "noDispo"},
		{"negative number", func(p *models.DisposisiPayload) { p.NoDispo = -3 }, "noDispo"},
		{"missing date", func(p *models.DisposisiPayload) { p.TglDispo = "" }, "tglDispo"},
		{"bad date form", func(p *models.DisposisiPayload) { p.TglDispo = "01/02/2025" }, "tglDispo"},
		{"no departments", func(p *models.DisposisiPayload) { p.DispoKe = nil }, "dispoKe"},
		{"blank department", func(p *models.DisposisiPayload) { p.DispoKe = []string{""} }, "dispoKe"},
		{"isi too short", func(p *models.DisposisiPayload) { p.IsiDispo = "pendek" }, "isiDispo"},
		{"isi too long", func(p *models.DisposisiPayload) { p.IsiDispo = strings.Repeat("a", 501) }, "isiDispo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := wellFormed()
			tc.mutate(&p)
			reasons := Validate(p)
			if len(reasons) != 1 {
				t.Fatalf("got %d reasons: %v", len(reasons), reasons)
			}
			if !strings.HasPrefix(reasons[0], tc.field+" ") {
				t.Errorf("reason %q does not name field %s", reasons[0], tc.field)
			}
		})
	}
}

func TestValidateBoundaryLengths(t *testing.T) {
	p := wellFormed()
	p.IsiDispo = strings.Repeat("x", 10)
	if reasons := Validate(p); len(reasons) != 0 {
		t.Errorf("10-char isi rejected: %v", reasons)
	}
	p.IsiDispo = strings.Repeat("x", 500)
	if reasons := Validate(p); len(reasons) != 0 {
		t.Errorf("500-char isi rejected: %v", reasons)
	}
}
