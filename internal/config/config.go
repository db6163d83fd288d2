package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ICEServer describes one STUN/TURN entry handed to the WebRTC engine and
// to clients. Username and credential are only set for TURN.
type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode                   string        `mapstructure:"mode"`
	ListenAddress          string        `mapstructure:"listen_address"`
	SignalingPort          int           `mapstructure:"signaling_port"`
	MaxParticipantsPerRoom int           `mapstructure:"max_participants_per_room"`
	RoomGracePeriod        time.Duration `mapstructure:"room_grace_period"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	ReadLimit              int64         `mapstructure:"read_limit"`
	PingPeriod             time.Duration `mapstructure:"ping_period"`
	ICEServers             []ICEServer   `mapstructure:"ice_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("listen_address", "0.0.0.0")
	v.SetDefault("signaling_port", 8080)
	v.SetDefault("max_participants_per_room", 50)
	v.SetDefault("room_grace_period", "60s")
	v.SetDefault("sweep_interval", "60s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
		{"urls": []string{"stun:stun1.l.google.com:19302"}},
	})
}
