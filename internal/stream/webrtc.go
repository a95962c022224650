package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/lunabell/internal/audio"
)

// WebRTCHandler serves WebRTC SDP negotiation for low-latency Opus streaming.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	bitrate     int

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]string
}

// NewWebRTCHandler creates a WebRTC stream handler encoding Opus at bitrate
// bits per second.
func NewWebRTCHandler(b *Broadcaster, bitrate int) *WebRTCHandler {
	if bitrate <= 0 {
		bitrate = 128000
	}
	return &WebRTCHandler{
		broadcaster: b,
		bitrate:     bitrate,
		peers:       make(map[*webrtc.PeerConnection]string),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := h.negotiate(offer)
	if err != nil {
		log.Warn().Err(err).Msg("webrtc negotiation failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	listener := h.broadcaster.Subscribe("webrtc")
	h.mu.Lock()
	h.peers[pc] = listener.ID
	h.mu.Unlock()

	lg := log.With().Str("peer", listener.ID).Logger()
	lg.Info().Int("total", h.PeerCount()).Msg("webrtc peer connected")

	go h.streamToPeer(pc, listener, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			if h.removePeer(pc) {
				h.broadcaster.Unsubscribe(listener)
				pc.Close()
				lg.Info().Str("state", s.String()).Int("remaining", h.PeerCount()).Msg("webrtc peer disconnected")
			}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// negotiate answers offer with a peer connection carrying one Opus track.
// The answer is complete once ICE gathering has finished.
func (h *WebRTCHandler) negotiate(offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, fmt.Errorf("peer connection: %w", err)
	}
	fail := func(what string, err error) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
		pc.Close()
		return nil, nil, fmt.Errorf("%s: %w", what, err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"lunabell",
	)
	if err != nil {
		return fail("audio track", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail("add track", err)
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail("remote description", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail("answer", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail("local description", err)
	}
	<-gathered
	return pc, track, nil
}

// streamToPeer encodes broadcast frames onto track until the listener is
// dropped or the track stops accepting samples, then releases the peer.
func (h *WebRTCHandler) streamToPeer(pc *webrtc.PeerConnection, listener *Listener, track *webrtc.TrackLocalStaticSample) {
	defer func() {
		h.broadcaster.Unsubscribe(listener)
		if h.removePeer(pc) {
			pc.Close()
			log.Info().Str("peer", listener.ID).Int("remaining", h.PeerCount()).Msg("webrtc peer released")
		}
	}()

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Error().Err(err).Msg("webrtc: opus encoder")
		return
	}
	if err := enc.SetBitrate(h.bitrate); err != nil {
		log.Warn().Err(err).Int("bitrate", h.bitrate).Msg("webrtc: opus bitrate rejected")
	}

	opusBuf := make([]byte, 4000)
	for {
		select {
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				log.Debug().Err(err).Msg("webrtc: opus encode, frame skipped")
				continue
			}
			if err := track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				log.Debug().Err(err).Str("peer", listener.ID).Msg("webrtc: write sample")
				return
			}
		}
	}
}

// removePeer reports whether pc was still registered.
func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[pc]; !ok {
		return false
	}
	delete(h.peers, pc)
	return true
}
