package domain

// VideoEncoding is the codec hint carried in a room's video configuration.
type VideoEncoding string

const (
	EncodingVP8  VideoEncoding = "vp8"
	EncodingH264 VideoEncoding = "h264"
	EncodingJPEG VideoEncoding = "jpeg"
)

// RecoveryPolicy names a consumer-side frame-loss handling strategy. The
// fabric stores and forwards the policy; it never acts on it.
type RecoveryPolicy string

const (
	RecoveryFreezeLastFrame RecoveryPolicy = "freeze_last_frame"
	RecoveryConnectionInfo  RecoveryPolicy = "connection_info"
	RecoveryBlackScreen     RecoveryPolicy = "black_screen"
	RecoveryFadeToBlack     RecoveryPolicy = "fade_to_black"
	RecoveryOverlayStatus   RecoveryPolicy = "overlay_status"
)

// Encodings lists the supported encoding hints.
func Encodings() []VideoEncoding {
	return []VideoEncoding{EncodingVP8, EncodingH264, EncodingJPEG}
}

// RecoveryPolicies lists the supported recovery policies.
func RecoveryPolicies() []RecoveryPolicy {
	return []RecoveryPolicy{
		RecoveryFreezeLastFrame,
		RecoveryConnectionInfo,
		RecoveryBlackScreen,
		RecoveryFadeToBlack,
		RecoveryOverlayStatus,
	}
}

// Resolution is a width/height pair in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// VideoConfig describes the producer's stream parameters for a video room.
type VideoConfig struct {
	Encoding   VideoEncoding `json:"encoding"`
	Resolution Resolution    `json:"resolution"`
	Framerate  int           `json:"framerate"`
	Bitrate    int           `json:"bitrate"`
	Quality    int           `json:"quality"`
}

// DefaultVideoConfig returns the stream defaults applied when a room is
// created without an explicit configuration.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Encoding:   EncodingVP8,
		Resolution: Resolution{Width: 640, Height: 480},
		Framerate:  30,
		Bitrate:    1_000_000,
		Quality:    80,
	}
}

// VideoConfigUpdate is a partial config carried by video_config_update
// messages; nil fields leave the stored value unchanged.
type VideoConfigUpdate struct {
	Encoding   *VideoEncoding `json:"encoding,omitempty"`
	Resolution *Resolution    `json:"resolution,omitempty"`
	Framerate  *int           `json:"framerate,omitempty"`
	Bitrate    *int           `json:"bitrate,omitempty"`
	Quality    *int           `json:"quality,omitempty"`
}

// RecoveryConfig is pass-through metadata: stored on the room, included in
// room state, forwarded to consumers, never interpreted server-side.
type RecoveryConfig struct {
	FrameTimeoutMS     int            `json:"frame_timeout_ms"`
	MaxFrameReuseCount int            `json:"max_frame_reuse_count"`
	RecoveryPolicy     RecoveryPolicy `json:"recovery_policy"`
	FallbackPolicy     RecoveryPolicy `json:"fallback_policy"`
	ShowHoldIndicators bool           `json:"show_hold_indicators"`
	FadeIntensity      float64        `json:"fade_intensity"`
	OverlayOpacity     float64        `json:"overlay_opacity"`
}

// DefaultRecoveryConfig mirrors the defaults consumers assume when a room
// carries no explicit recovery configuration.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		FrameTimeoutMS:     100,
		MaxFrameReuseCount: 3,
		RecoveryPolicy:     RecoveryFreezeLastFrame,
		FallbackPolicy:     RecoveryConnectionInfo,
		ShowHoldIndicators: true,
		FadeIntensity:      0.7,
		OverlayOpacity:     0.3,
	}
}
