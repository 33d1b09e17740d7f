package tts

// SSML genders understood by the synthesis endpoint.
const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
)

// Voice identifies one synthesis voice.
type Voice struct {
	LanguageCode string
	Name         string
	Gender       string
}

// VoiceSet holds the two fixed voices of a language.
type VoiceSet struct {
	LanguageCode string
	Male         string
	Female       string
}

// SelectVoice picks the voice for the configured gender flag.
func (v VoiceSet) SelectVoice(female bool) Voice {
	if female {
		return Voice{LanguageCode: v.LanguageCode, Name: v.Female, Gender: GenderFemale}
	}
	return Voice{LanguageCode: v.LanguageCode, Name: v.Male, Gender: GenderMale}
}
