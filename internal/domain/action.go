package domain

import "strings"

// ActionKind identifies a privileged action subject to rate limiting.
type ActionKind string

const (
	ActionAudio     ActionKind = "audio"
	ActionThumbnail ActionKind = "thumbnail"
	ActionPodcast   ActionKind = "podcast"
	ActionUpload    ActionKind = "upload"
)

// ActionKinds lists every known kind.
var ActionKinds = []ActionKind{ActionAudio, ActionThumbnail, ActionPodcast, ActionUpload}

// ParseActionKind validates a kind name.
func ParseActionKind(s string) (ActionKind, bool) {
	k := ActionKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ActionKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Metered returns true if the action counts against the monthly quota.
func (k ActionKind) Metered() bool {
	return k != ActionUpload
}

func (k ActionKind) String() string {
	return string(k)
}

// Voice is a speech voice for audio generation.
type Voice string

const (
	VoiceAlloy   Voice = "alloy"
	VoiceEcho    Voice = "echo"
	VoiceFable   Voice = "fable"
	VoiceOnyx    Voice = "onyx"
	VoiceNova    Voice = "nova"
	VoiceShimmer Voice = "shimmer"

	// DefaultVoice is available on every plan.
	DefaultVoice = VoiceAlloy
)

// Voices lists every supported voice.
var Voices = []Voice{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}

// ParseVoice validates a voice name. An empty name yields the default voice.
func ParseVoice(s string) (Voice, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultVoice, true
	}
	for _, v := range Voices {
		if Voice(s) == v {
			return v, true
		}
	}
	return "", false
}

// ActionRequest describes a privileged action awaiting a gate decision.
// Thumbnail requests are always premium; audio requests are premium when
// Voice differs from the default voice.
type ActionRequest struct {
	UserID string
	Kind   ActionKind
	Voice  Voice
}
