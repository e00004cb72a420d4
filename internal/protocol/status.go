package protocol

import (
	"encoding/base64"
	"os"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// StatusProtocol is the protocol number reported in every status reply.
// -1 deliberately signals "unknown/incompatible" so no client version is
// claimed as supported.
const StatusProtocol = -1

// Descriptor is the read-only metadata snapshot embedded into outgoing
// packets. It is built once at startup and shared across all sessions;
// no session mutates it.
type Descriptor struct {
	MOTD          string
	VersionName   string
	KickMessage   string
	MaxPlayers    int
	OnlinePlayers int
	Icon          []byte // raw PNG bytes, optional
}

// NewDescriptor builds the descriptor from config. A configured but
// unreadable icon logs a warning and the favicon is omitted.
func NewDescriptor(cfg *config.Config, logger zerolog.Logger) *Descriptor {
	d := &Descriptor{
		MOTD:          cfg.Messages.MOTD,
		VersionName:   cfg.Messages.VersionName,
		KickMessage:   cfg.Messages.KickMessage,
		MaxPlayers:    cfg.Messages.MaxPlayers,
		OnlinePlayers: cfg.Messages.OnlinePlayers,
	}

	if path := cfg.Messages.ServerIcon; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("server icon unreadable, favicon disabled")
		} else {
			d.Icon = data
		}
	}

	return d
}

type statusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type statusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

type chatText struct {
	Text string `json:"text"`
}

// StatusResponse is the JSON document sent in the status reply.
type StatusResponse struct {
	Version     statusVersion `json:"version"`
	Players     statusPlayers `json:"players"`
	Description chatText      `json:"description"`
	Favicon     string        `json:"favicon,omitempty"`
}

// StatusJSON serializes the status reply. The favicon field is present only
// when icon bytes were loaded.
func (d *Descriptor) StatusJSON() ([]byte, error) {
	resp := StatusResponse{
		Version:     statusVersion{Name: d.VersionName, Protocol: StatusProtocol},
		Players:     statusPlayers{Max: d.MaxPlayers, Online: d.OnlinePlayers},
		Description: chatText{Text: d.MOTD},
	}
	if len(d.Icon) > 0 {
		resp.Favicon = "data:image/png;base64," + base64.StdEncoding.EncodeToString(d.Icon)
	}
	return sonic.Marshal(resp)
}

// KickJSON serializes the login rejection message.
func (d *Descriptor) KickJSON() ([]byte, error) {
	return sonic.Marshal(chatText{Text: d.KickMessage})
}
