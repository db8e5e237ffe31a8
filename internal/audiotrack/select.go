// Package audiotrack chooses the one audio stream a download should use.
//
// The choice follows a fixed cascade: an explicit "original" annotation beats
// the video-level language hint, which beats a source offering a single
// language, which beats a source carrying no language data at all. A source
// with several languages and none of those signals yields no track.
package audiotrack

import (
	"regexp"
	"strings"

	"ytdlp-queue/internal/model"
)

var originalNote = regexp.MustCompile(`(?i)(original|原声|原音|原始)`)

var sentinelLanguages = map[string]bool{
	"und":     true,
	"unknown": true,
	"mul":     true,
	"zxx":     true,
}

// NormalizeLanguage trims a language tag and maps placeholder codes to "".
func NormalizeLanguage(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" || sentinelLanguages[strings.ToLower(v)] {
		return ""
	}
	return v
}

func HasOriginalNote(note *string) bool {
	return note != nil && originalNote.MatchString(*note)
}

// Select returns the track to download, or false when formats give no safe
// choice. hint is the video-level language reported by the probe.
func Select(formats []model.Format, hint string) (model.SelectedTrack, bool) {
	var audioOnly, combined []model.Format
	for _, f := range formats {
		switch {
		case f.IsAudioOnly():
			audioOnly = append(audioOnly, f)
		case f.IsCombined():
			combined = append(combined, f)
		}
	}
	if len(audioOnly) == 0 && len(combined) == 0 {
		return model.SelectedTrack{}, false
	}

	if marked := filter(audioOnly, func(f model.Format) bool { return HasOriginalNote(f.Note) }); len(marked) > 0 {
		return model.TrackFromFormat(bestByBitrate(marked), model.ReasonExplicitOriginal, false), true
	}
	if marked := filter(combined, func(f model.Format) bool { return HasOriginalNote(f.Note) }); len(marked) > 0 {
		return model.TrackFromFormat(bestCombined(marked), model.ReasonExplicitOriginal, true), true
	}

	if NormalizeLanguage(hint) != "" {
		sameLang := func(f model.Format) bool { return f.Language != nil && *f.Language == hint }
		if match := filter(audioOnly, sameLang); len(match) > 0 {
			return model.TrackFromFormat(bestByBitrate(match), model.ReasonVideoLanguage, false), true
		}
		if match := filter(combined, sameLang); len(match) > 0 {
			return model.TrackFromFormat(bestCombined(match), model.ReasonVideoLanguage, true), true
		}
	}

	audioLangs := knownLanguages(audioOnly)
	combinedLangs := knownLanguages(combined)
	if len(audioLangs) == 1 {
		lang := audioLangs[0]
		match := filter(audioOnly, func(f model.Format) bool { return NormalizeLanguage(f.LanguageOrEmpty()) == lang })
		return model.TrackFromFormat(bestByBitrate(match), model.ReasonSingleLanguage, false), true
	}
	if len(combinedLangs) == 1 {
		lang := combinedLangs[0]
		match := filter(combined, func(f model.Format) bool { return NormalizeLanguage(f.LanguageOrEmpty()) == lang })
		return model.TrackFromFormat(bestCombined(match), model.ReasonSingleLanguage, true), true
	}

	if len(audioLangs) == 0 && len(combinedLangs) == 0 {
		if len(audioOnly) > 0 {
			return model.TrackFromFormat(bestByBitrate(audioOnly), model.ReasonNoLanguageInfo, false), true
		}
		return model.TrackFromFormat(bestCombined(combined), model.ReasonNoLanguageInfo, true), true
	}

	return model.SelectedTrack{}, false
}

// knownLanguages returns the distinct normalised languages in first-seen order.
func knownLanguages(formats []model.Format) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, 2)
	for _, f := range formats {
		lang := NormalizeLanguage(f.LanguageOrEmpty())
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

func filter(formats []model.Format, keep func(model.Format) bool) []model.Format {
	var out []model.Format
	for _, f := range formats {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// bestByBitrate keeps the first of equally ranked formats.
func bestByBitrate(formats []model.Format) model.Format {
	best := formats[0]
	for _, f := range formats[1:] {
		if f.AudioBitrate() > best.AudioBitrate() {
			best = f
		}
	}
	return best
}

func bestCombined(formats []model.Format) model.Format {
	best := formats[0]
	for _, f := range formats[1:] {
		if h, bh := f.HeightOrZero(), best.HeightOrZero(); h != bh {
			if h > bh {
				best = f
			}
			continue
		}
		if f.TotalBitrateOrZero() > best.TotalBitrateOrZero() {
			best = f
		}
	}
	return best
}
