package model

import "strings"

// Format is one stream offered by a source, as listed by a metadata probe.
// Optional fields are nil when the probe did not report them.
type Format struct {
	ID           string   `json:"format_id"`
	ACodec       *string  `json:"acodec,omitempty"`
	VCodec       *string  `json:"vcodec,omitempty"`
	Language     *string  `json:"language,omitempty"`
	Note         *string  `json:"format_note,omitempty"`
	Bitrate      *float64 `json:"abr,omitempty"`
	TotalBitrate *float64 `json:"tbr,omitempty"`
	Height       *int     `json:"height,omitempty"`
	Extension    *string  `json:"ext,omitempty"`
}

func hasCodec(codec *string) bool {
	if codec == nil {
		return false
	}
	v := strings.TrimSpace(*codec)
	return v != "" && !strings.EqualFold(v, "none")
}

func (f Format) HasAudio() bool {
	return hasCodec(f.ACodec)
}

func (f Format) HasVideo() bool {
	return hasCodec(f.VCodec)
}

func (f Format) IsAudioOnly() bool {
	return f.HasAudio() && !f.HasVideo()
}

func (f Format) IsCombined() bool {
	return f.HasAudio() && f.HasVideo()
}

// AudioBitrate is abr, falling back to tbr, else 0.
func (f Format) AudioBitrate() float64 {
	if f.Bitrate != nil {
		return *f.Bitrate
	}
	if f.TotalBitrate != nil {
		return *f.TotalBitrate
	}
	return 0
}

func (f Format) HeightOrZero() int {
	if f.Height == nil {
		return 0
	}
	return *f.Height
}

func (f Format) TotalBitrateOrZero() float64 {
	if f.TotalBitrate == nil {
		return 0
	}
	return *f.TotalBitrate
}

func (f Format) LanguageOrEmpty() string {
	if f.Language == nil {
		return ""
	}
	return *f.Language
}

type TrackReason string

const (
	ReasonExplicitOriginal TrackReason = "explicit-original"
	ReasonVideoLanguage    TrackReason = "video-language"
	ReasonSingleLanguage   TrackReason = "single-language"
	ReasonNoLanguageInfo   TrackReason = "no-language-info"
)

func (r TrackReason) Describe() string {
	switch r {
	case ReasonExplicitOriginal:
		return "matched original-audio marker"
	case ReasonSingleLanguage:
		return "no original marker, using the only language available"
	case ReasonVideoLanguage:
		return "no original marker, inferred from video language"
	case ReasonNoLanguageInfo:
		return "no language info, using best available track"
	default:
		return string(r)
	}
}

type SelectedTrack struct {
	ID        string      `json:"id"`
	Note      *string     `json:"note,omitempty"`
	Language  *string     `json:"language,omitempty"`
	Extension *string     `json:"ext,omitempty"`
	Bitrate   *float64    `json:"abr,omitempty"`
	Reason    TrackReason `json:"reason"`
	Combined  bool        `json:"combined"`
}

func TrackFromFormat(f Format, reason TrackReason, combined bool) SelectedTrack {
	return SelectedTrack{
		ID:        f.ID,
		Note:      f.Note,
		Language:  f.Language,
		Extension: f.Extension,
		Bitrate:   f.Bitrate,
		Reason:    reason,
		Combined:  combined,
	}
}

// ExtensionOrEmpty returns the container extension of the track, if known.
func (t SelectedTrack) ExtensionOrEmpty() string {
	if t.Extension == nil {
		return ""
	}
	return *t.Extension
}

func (t SelectedTrack) NoteOrEmpty() string {
	if t.Note == nil {
		return ""
	}
	return *t.Note
}

// Describe renders the track for logs, e.g. "251 (original) · matched
// original-audio marker".
func (t SelectedTrack) Describe() string {
	label := t.ID
	if note := strings.TrimSpace(t.NoteOrEmpty()); note != "" {
		label += " (" + note + ")"
	}
	return label + " · " + t.Reason.Describe()
}
