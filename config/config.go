package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/babelcloud/gbox/packages/avtool/internal/media"
	"github.com/babelcloud/gbox/packages/avtool/internal/transcode"
)

var (
	v       *viper.Viper
	loadErr error
)

func init() {
	loadErr = load()
}

func load() error {
	v = viper.New()

	d := transcode.DefaultSettings()
	v.SetDefault("transcode.duration", d.Duration)
	v.SetDefault("transcode.frame_rate", d.FrameRate)
	v.SetDefault("transcode.fallback_format", d.FallbackFormat)
	v.SetDefault("transcode.video.codec", "")
	v.SetDefault("transcode.video.width", d.Video.Width)
	v.SetDefault("transcode.video.height", d.Video.Height)
	v.SetDefault("transcode.video.bit_rate", d.Video.BitRate)
	v.SetDefault("transcode.video.gop_size", d.Video.GOPSize)
	v.SetDefault("transcode.audio.codec", "")
	v.SetDefault("transcode.audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("transcode.audio.channels", d.Audio.Channels)
	v.SetDefault("transcode.audio.bit_rate", d.Audio.BitRate)
	v.SetDefault("transcode.audio.variable_frame_size", d.Audio.VariableFrameSize)

	v.SetDefault("remux.kinds", []string{"audio", "video", "subtitle"})
	v.SetDefault("output.muxer", "libav")

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("transcode.duration", "AVTOOL_DURATION")
	v.BindEnv("transcode.frame_rate", "AVTOOL_FRAME_RATE")
	v.BindEnv("transcode.fallback_format", "AVTOOL_FALLBACK_FORMAT")
	v.BindEnv("transcode.video.codec", "AVTOOL_VIDEO_CODEC")
	v.BindEnv("transcode.audio.codec", "AVTOOL_AUDIO_CODEC")
	v.BindEnv("remux.kinds", "AVTOOL_REMUX_KINDS")
	v.BindEnv("output.muxer", "AVTOOL_MUXER")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		filepath.Join(xdg.ConfigHome, "avtool"),
		"/etc/avtool",
	}
	if dir := os.Getenv("AVTOOL_CONFIG_DIR"); dir != "" {
		configPaths = append([]string{dir}, configPaths...)
	}
	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return errors.Wrap(err, "failed to read config file")
		}
		// Config file not found; ignore error and use defaults
	}
	return nil
}

// LoadError returns the error met while reading the config file, if any.
func LoadError() error {
	return loadErr
}

// ConfigFile returns the path of the config file in use, empty when none.
func ConfigFile() string {
	return v.ConfigFileUsed()
}

// Set overrides a key, used for command line flags.
func Set(key string, value interface{}) {
	v.Set(key, value)
}

// GetMuxer returns the configured container writer selection.
func GetMuxer() string {
	return v.GetString("output.muxer")
}

// RemuxKinds returns the stream kinds remux keeps.
func RemuxKinds() (media.KindSet, error) {
	return media.ParseKinds(v.GetStringSlice("remux.kinds"))
}

// TranscodeSettings returns the synthetic transcode settings.
func TranscodeSettings() (transcode.Settings, error) {
	s := transcode.DefaultSettings()
	s.Duration = v.GetDuration("transcode.duration")
	s.FrameRate = v.GetInt("transcode.frame_rate")
	s.FallbackFormat = v.GetString("transcode.fallback_format")

	s.Video.Codec = v.GetString("transcode.video.codec")
	s.Video.Width = v.GetInt("transcode.video.width")
	s.Video.Height = v.GetInt("transcode.video.height")
	s.Video.BitRate = v.GetInt64("transcode.video.bit_rate")
	s.Video.GOPSize = v.GetInt("transcode.video.gop_size")

	s.Audio.Codec = v.GetString("transcode.audio.codec")
	s.Audio.SampleRate = v.GetInt("transcode.audio.sample_rate")
	s.Audio.Channels = v.GetInt("transcode.audio.channels")
	s.Audio.BitRate = v.GetInt64("transcode.audio.bit_rate")
	s.Audio.VariableFrameSize = v.GetInt("transcode.audio.variable_frame_size")

	switch {
	case s.Duration <= 0:
		return s, errors.Errorf("transcode.duration must be positive, got %s", s.Duration)
	case s.FrameRate <= 0:
		return s, errors.Errorf("transcode.frame_rate must be positive, got %d", s.FrameRate)
	case s.Video.Width <= 0 || s.Video.Height <= 0:
		return s, errors.Errorf("transcode.video size must be positive, got %dx%d", s.Video.Width, s.Video.Height)
	case s.Audio.SampleRate <= 0 || s.Audio.Channels <= 0:
		return s, errors.New("transcode.audio sample_rate and channels must be positive")
	case s.Audio.VariableFrameSize <= 0:
		return s, errors.Errorf("transcode.audio.variable_frame_size must be positive, got %d", s.Audio.VariableFrameSize)
	case s.Video.BitRate < 0 || s.Audio.BitRate < 0:
		return s, errors.New("transcode bit_rate must not be negative")
	case s.Video.GOPSize < 0:
		return s, errors.Errorf("transcode.video.gop_size must not be negative, got %d", s.Video.GOPSize)
	}
	return s, nil
}
