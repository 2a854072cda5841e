package disposisi

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sinorat/sinorat/internal/models"
)

// Isi (instruction body) length bounds, in characters.
const (
	IsiMinLen = 10
	IsiMaxLen = 500
)

// payloadFields fixes the order reasons are reported in.
var payloadFields = []string{"letterIn_id", "noDispo", "tglDispo", "dispoKe", "isiDispo"}

// Validate checks a disposition payload and returns every violated rule as a
// human-readable reason. An empty result means the payload may be submitted.
// No rule touches the network.
func Validate(p models.DisposisiPayload) []string {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.LetterInID,
			validation.Required.Error("is required; resolve the letter by agenda number first")),
		validation.Field(&p.NoDispo,
			validation.Required.Error("is required"),
			validation.Min(1).Error("must be at least 1")),
		validation.Field(&p.TglDispo,
			validation.Required.Error("is required"),
			validation.Date("2006-01-02").Error("must be a date in YYYY-MM-DD form")),
		validation.Field(&p.DispoKe,
			validation.Required.Error("must name at least one target department"),
			validation.Each(validation.Required.Error("entries must not be blank"))),
		validation.Field(&p.IsiDispo,
			validation.Required.Error("is required"),
			validation.Length(IsiMinLen, IsiMaxLen).Error("must be between 10 and 500 characters")),
	)
	return collectReasons(err, payloadFields)
}

// collectReasons flattens an ozzo error map into "field message" strings in
// the given field order.
func collectReasons(err error, fields []string) []string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}
	var reasons []string
	for _, f := range fields {
		if fieldErr, found := errs[f]; found && fieldErr != nil {
			reasons = append(reasons, f+" "+fieldErr.Error())
		}
	}
	return reasons
}
