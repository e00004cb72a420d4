package protocol

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func testDescriptor() *Descriptor {
	return &Descriptor{
		MOTD:          "§aFake Minecraft Server\n§7Welcome!",
		VersionName:   "FakeMinecraftServer",
		KickMessage:   "You cannot join this server.\nPlease contact admin.",
		MaxPlayers:    10,
		OnlinePlayers: 0,
	}
}

func TestStatusJSON(t *testing.T) {
	body, err := testDescriptor().StatusJSON()
	if err != nil {
		t.Fatalf("StatusJSON failed: %v", err)
	}

	var resp StatusResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		t.Fatalf("status reply is not valid JSON: %v", err)
	}

	if resp.Version.Protocol != StatusProtocol {
		t.Errorf("version.protocol = %d, want %d", resp.Version.Protocol, StatusProtocol)
	}
	if resp.Version.Name != "FakeMinecraftServer" {
		t.Errorf("version.name = %q", resp.Version.Name)
	}
	if resp.Players.Max != 10 || resp.Players.Online != 0 {
		t.Errorf("players = %+v, want max 10 online 0", resp.Players)
	}
	if resp.Description.Text == "" {
		t.Error("description.text is empty")
	}
	if strings.Contains(string(body), "favicon") {
		t.Error("favicon field present without a configured icon")
	}
}

func TestStatusJSONWithIcon(t *testing.T) {
	d := testDescriptor()
	d.Icon = []byte{0x89, 'P', 'N', 'G'}

	body, err := d.StatusJSON()
	if err != nil {
		t.Fatalf("StatusJSON failed: %v", err)
	}

	var resp StatusResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		t.Fatalf("status reply is not valid JSON: %v", err)
	}

	if !strings.HasPrefix(resp.Favicon, "data:image/png;base64,") {
		t.Errorf("favicon = %q, want data URI", resp.Favicon)
	}
}

func TestKickJSON(t *testing.T) {
	body, err := testDescriptor().KickJSON()
	if err != nil {
		t.Fatalf("KickJSON failed: %v", err)
	}

	var msg chatText
	if err := sonic.Unmarshal(body, &msg); err != nil {
		t.Fatalf("kick reply is not valid JSON: %v", err)
	}
	if !strings.HasPrefix(msg.Text, "You cannot join this server.") {
		t.Errorf("kick text = %q", msg.Text)
	}
}
