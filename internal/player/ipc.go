package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ksyasuda/jimaku-dl/internal/config"
	"github.com/ksyasuda/jimaku-dl/internal/models"
)

const dialTimeout = 2 * time.Second

// commandTimeout bounds a full command round-trip so a wedged player cannot
// block the caller forever. Variable for tests.
var commandTimeout = 5 * time.Second

// Conn is a connection to a running mpv instance over its JSON IPC socket.
type Conn struct {
	conn      net.Conn
	reader    *bufio.Reader
	requestID int
}

// Dial connects to the mpv IPC socket at the given path.
func Dial(socketPath string) (*Conn, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to player socket %s: %w", socketPath, err)
	}
	return &Conn{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// DialWait polls for the socket until mpv has created it, then connects.
// Playback startup races the first IPC command, so callers that just launched
// the player should use this instead of Dial.
func DialWait(ctx context.Context, socketPath string, wait time.Duration) (*Conn, error) {
	deadline := time.Now().Add(wait)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			if conn, err := Dial(socketPath); err == nil {
				return conn, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("player socket %s did not appear within %s", socketPath, wait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type ipcResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int             `json:"request_id"`
	Event     string          `json:"event"`
}

// command sends one IPC command and waits for its matching reply, skipping
// any event notifications mpv interleaves on the socket.
func (c *Conn) command(args ...any) (json.RawMessage, error) {
	c.requestID++
	request := ipcRequest{Command: args, RequestID: c.requestID}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode IPC command: %w", err)
	}
	payload = append(payload, '\n')

	if err := c.conn.SetDeadline(time.Now().Add(commandTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set IPC deadline: %w", err)
	}

	if _, err := c.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to send IPC command: %w", err)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read IPC response: %w", err)
		}

		var response ipcResponse
		if err := json.Unmarshal(line, &response); err != nil {
			return nil, fmt.Errorf("failed to decode IPC response: %w", err)
		}

		if response.Event != "" || response.RequestID != c.requestID {
			continue
		}
		if response.Error != "success" {
			return nil, fmt.Errorf("player rejected command %v: %s", args, response.Error)
		}
		return response.Data, nil
	}
}

// SubAdd loads a subtitle file into the running player and selects it.
func (c *Conn) SubAdd(path string) error {
	_, err := c.command("sub-add", path, "select")
	return err
}

// SetProperty sets an mpv property.
func (c *Conn) SetProperty(name string, value any) error {
	_, err := c.command("set_property", name, value)
	return err
}

// GetProperty reads an mpv property into out.
func (c *Conn) GetProperty(name string, out any) error {
	data, err := c.command("get_property", name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode property %s: %w", name, err)
	}
	return nil
}

// TrackList returns the player's current track list.
func (c *Conn) TrackList() ([]models.Track, error) {
	var tracks []models.Track
	if err := c.GetProperty("track-list", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// ApplySubtitle hot-swaps the active subtitle and lines up the audio track,
// preferring Japanese audio so the subtitles match what is being spoken.
func (c *Conn) ApplySubtitle(path string) error {
	logger := config.GetLogger()

	if err := c.SubAdd(path); err != nil {
		return err
	}

	tracks, err := c.TrackList()
	if err != nil {
		return err
	}

	sid, aid := ChooseTracks(tracks)
	if sid != 0 {
		if err := c.SetProperty("sid", sid); err != nil {
			return err
		}
	}
	if aid != 0 {
		if err := c.SetProperty("aid", aid); err != nil {
			return err
		}
	}

	logger.Info().
		Str("subtitle", path).
		Int("sid", sid).
		Int("aid", aid).
		Msg("Applied subtitle to running player")

	return c.ShowText("Subtitle updated: " + path)
}

// ShowText flashes a message on the player's OSD.
func (c *Conn) ShowText(message string) error {
	_, err := c.command("show-text", message, 3000)
	return err
}

// ChooseTracks picks the subtitle and audio track IDs to activate. The most
// recently added subtitle wins, and Japanese audio is preferred with a
// fallback to the first audio track. A zero ID means no such track exists.
func ChooseTracks(tracks []models.Track) (sid int, aid int) {
	for _, track := range tracks {
		switch {
		case track.IsSubtitle():
			// sub-add appends, so the highest ID is the one just loaded
			if track.ID > sid {
				sid = track.ID
			}
		case track.IsAudio():
			if aid == 0 || (track.IsJapanese() && !isJapaneseAudio(tracks, aid)) {
				aid = track.ID
			}
		}
	}
	return sid, aid
}

func isJapaneseAudio(tracks []models.Track, id int) bool {
	for _, track := range tracks {
		if track.IsAudio() && track.ID == id {
			return track.IsJapanese()
		}
	}
	return false
}
