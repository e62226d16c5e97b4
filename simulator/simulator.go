package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"caretalk/internal/middleware"
	"caretalk/internal/models"
)

// SimConfig drives a synthetic chat workload against a running server.
type SimConfig struct {
	// NumPairs is how many doctor/patient pairs exchange messages.
	NumPairs int
	// SimulationTime bounds the whole run.
	SimulationTime time.Duration
	// MessageFrequency is messages per participant per hour.
	MessageFrequency float64
	// ReadFrequency is mark-read calls per participant per hour.
	ReadFrequency float64
	// DisconnectRate is the per-tick probability a participant goes idle.
	DisconnectRate float64
	// ReconnectRate is the per-tick probability an idle participant resumes.
	ReconnectRate float64
	ServerURL     string
	// JWTSecret must match the server's so the simulator can mint tokens.
	JWTSecret string
}

type SimulationStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	TotalRequests    int64
	SuccessRequests  int64
	FailedRequests   int64
	TotalMessages    int
	TotalReads       int
	ActiveUsers      int
	RequestLatencies []time.Duration
}

// SimulatedUser is one side of a conversation pair. IsConnected is
// toggled and read from the user's own traffic goroutine and its
// connection ticker, so it is atomic.
type SimulatedUser struct {
	Participant models.Participant
	Token       string
	IsConnected atomic.Bool
	LastActive  time.Time
}

type simulatedPair struct {
	Doctor         *SimulatedUser
	Patient        *SimulatedUser
	ConversationID string
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Simulator struct {
	config SimConfig
	stats  *SimulationStats
	pairs  []*simulatedPair
	client *http.Client
	auth   *middleware.Auth
	rng    *rand.Rand
}

func NewSimulator(config SimConfig) *Simulator {
	return &Simulator{
		config: config,
		stats:  &SimulationStats{StartTime: time.Now()},
		client: &http.Client{Timeout: 10 * time.Second},
		auth:   middleware.NewAuth(config.JWTSecret),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run resolves every pair's conversation and then generates traffic until
// the context expires.
func (s *Simulator) Run(ctx context.Context) error {
	log.Printf("Setting up %d conversation pairs...", s.config.NumPairs)
	if err := s.setupPairs(ctx); err != nil {
		return fmt.Errorf("failed to set up pairs: %w", err)
	}

	log.Printf("Starting chat traffic simulation...")
	var wg sync.WaitGroup
	for _, pair := range s.pairs {
		for _, user := range []*SimulatedUser{pair.Doctor, pair.Patient} {
			wg.Add(1)
			// Each goroutine gets its own rand source; *rand.Rand is not
			// safe for concurrent use.
			rng := rand.New(rand.NewSource(s.rng.Int63()))
			go func(pair *simulatedPair, user *SimulatedUser, rng *rand.Rand) {
				defer wg.Done()
				s.simulateParticipant(ctx, pair, user, rng)
			}(pair, user, rng)
		}
	}
	wg.Wait()
	return nil
}

func (s *Simulator) setupPairs(ctx context.Context) error {
	for i := 0; i < s.config.NumPairs; i++ {
		doctor, err := s.newUser(fmt.Sprintf("doc-%d", i), fmt.Sprintf("Dr. Simulated %d", i))
		if err != nil {
			return err
		}
		patient, err := s.newUser(fmt.Sprintf("pat-%d", i), fmt.Sprintf("Patient %d", i))
		if err != nil {
			return err
		}

		conv, err := s.resolveConversation(ctx, doctor, patient)
		if err != nil {
			return err
		}
		s.pairs = append(s.pairs, &simulatedPair{
			Doctor:         doctor,
			Patient:        patient,
			ConversationID: conv.ID,
		})
		s.stats.mu.Lock()
		s.stats.ActiveUsers += 2
		s.stats.mu.Unlock()
	}
	return nil
}

func (s *Simulator) newUser(id, displayName string) (*SimulatedUser, error) {
	token, err := s.auth.GenerateToken(id)
	if err != nil {
		return nil, fmt.Errorf("failed to mint token for %s: %w", id, err)
	}
	user := &SimulatedUser{
		Participant: models.Participant{ID: id, DisplayName: displayName},
		Token:       token,
		LastActive:  time.Now(),
	}
	user.IsConnected.Store(true)
	return user, nil
}

func (s *Simulator) resolveConversation(ctx context.Context, a, b *SimulatedUser) (*models.Conversation, error) {
	body := map[string]models.Participant{
		"participantA": a.Participant,
		"participantB": b.Participant,
	}
	var conv models.Conversation
	if err := s.doJSON(ctx, a.Token, http.MethodPost, "/conversations/resolve", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *Simulator) simulateParticipant(ctx context.Context, pair *simulatedPair, user *SimulatedUser, rng *rand.Rand) {
	// Poisson-style arrivals: expected interval derived from the hourly rate.
	messageInterval := time.Duration(float64(time.Hour) / s.config.MessageFrequency)
	readInterval := time.Duration(float64(time.Hour) / s.config.ReadFrequency)

	messageTicker := time.NewTicker(jitter(rng, messageInterval))
	readTicker := time.NewTicker(jitter(rng, readInterval))
	connTicker := time.NewTicker(time.Second)
	defer messageTicker.Stop()
	defer readTicker.Stop()
	defer connTicker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-connTicker.C:
			s.toggleConnection(user, rng)
		case <-messageTicker.C:
			if !user.IsConnected.Load() {
				continue
			}
			n++
			text := fmt.Sprintf("message %d from %s", n, user.Participant.ID)
			s.sendMessage(ctx, pair.ConversationID, user, text)
			messageTicker.Reset(jitter(rng, messageInterval))
		case <-readTicker.C:
			if !user.IsConnected.Load() {
				continue
			}
			s.markRead(ctx, pair.ConversationID, user)
			readTicker.Reset(jitter(rng, readInterval))
		}
	}
}

func (s *Simulator) toggleConnection(user *SimulatedUser, rng *rand.Rand) {
	if user.IsConnected.Load() && rng.Float64() < s.config.DisconnectRate {
		user.IsConnected.Store(false)
		s.stats.mu.Lock()
		s.stats.ActiveUsers--
		s.stats.mu.Unlock()
	} else if !user.IsConnected.Load() && rng.Float64() < s.config.ReconnectRate {
		user.IsConnected.Store(true)
		user.LastActive = time.Now()
		s.stats.mu.Lock()
		s.stats.ActiveUsers++
		s.stats.mu.Unlock()
	}
}

func (s *Simulator) sendMessage(ctx context.Context, conversationID string, user *SimulatedUser, text string) {
	body := map[string]interface{}{
		"sender": user.Participant,
		"text":   text,
	}
	path := fmt.Sprintf("/conversations/%s/messages", conversationID)
	if err := s.doJSON(ctx, user.Token, http.MethodPost, path, body, nil); err != nil {
		log.Printf("Send failed for %s: %v", user.Participant.ID, err)
		return
	}
	s.stats.mu.Lock()
	s.stats.TotalMessages++
	s.stats.mu.Unlock()
}

func (s *Simulator) markRead(ctx context.Context, conversationID string, user *SimulatedUser) {
	path := fmt.Sprintf("/conversations/%s/read", conversationID)
	if err := s.doJSON(ctx, user.Token, http.MethodPost, path, nil, nil); err != nil {
		log.Printf("Mark read failed for %s: %v", user.Participant.ID, err)
		return
	}
	s.stats.mu.Lock()
	s.stats.TotalReads++
	s.stats.mu.Unlock()
}

func (s *Simulator) doJSON(ctx context.Context, token, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.ServerURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	s.stats.mu.Lock()
	s.stats.TotalRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)
	if err != nil || resp.StatusCode >= 400 {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}
	s.stats.mu.Unlock()

	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, errResp.Error, errResp.Code)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// GetMetrics returns a snapshot of the run's counters.
func (s *Simulator) GetMetrics() SimulationStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return SimulationStats{
		StartTime:       s.stats.StartTime,
		TotalRequests:   s.stats.TotalRequests,
		SuccessRequests: s.stats.SuccessRequests,
		FailedRequests:  s.stats.FailedRequests,
		TotalMessages:   s.stats.TotalMessages,
		TotalReads:      s.stats.TotalReads,
		ActiveUsers:     s.stats.ActiveUsers,
	}
}

// AverageLatency averages all recorded request latencies.
func (s *Simulator) AverageLatency() time.Duration {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	if len(s.stats.RequestLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range s.stats.RequestLatencies {
		total += l
	}
	return total / time.Duration(len(s.stats.RequestLatencies))
}

func jitter(rng *rand.Rand, d time.Duration) time.Duration {
	// 50%-150% of the base interval keeps traffic from synchronizing.
	return time.Duration(float64(d) * (0.5 + rng.Float64()))
}
