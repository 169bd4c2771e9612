package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/model"
)

// State is the network-driven state of the display. The wall-clock-driven
// Phase only exists inside StatePlanAssigned.
type State string

const (
	StateInit         State = "INIT"
	StateAwaitingPair State = "AWAITING_PAIR"
	StatePairedNoPlan State = "PAIRED_NO_PLAN"
	StatePlanAssigned State = "PLAN_ASSIGNED"
)

// ErrDeviceNotFound is returned by API.Status when the server has no
// memory of the device. It is the one error that rolls the machine back to
// StateInit instead of retrying.
var ErrDeviceNotFound = errors.New("device not found")

// InitResponse is the identity pair a kiosk persists on first boot.
type InitResponse struct {
	DeviceID string `json:"deviceId"`
	Code     string `json:"code"`
}

// StatusResponse is the polled snapshot. DayPlan stays raw so the machine
// can compare payloads byte for byte and skip redundant re-renders.
type StatusResponse struct {
	Status         string          `json:"status"`
	IsPaired       bool            `json:"isPaired"`
	PairingCode    *string         `json:"pairingCode"`
	OrganisationID *string         `json:"organisationId"`
	DeviceName     *string         `json:"deviceName"`
	DayPlan        json.RawMessage `json:"dayPlan"`
}

// API is the server surface the machine depends on.
type API interface {
	Init(ctx context.Context) (*InitResponse, error)
	Status(ctx context.Context, deviceID string) (*StatusResponse, error)
	Disconnect(ctx context.Context, deviceID string) error
	Reset(ctx context.Context, deviceID string) error
}

// Clock abstracts the wall clock so tests can drive phase transitions.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock.
var SystemClock Clock = systemClock{}

// LocalState is what survives a kiosk reboot.
type LocalState struct {
	DeviceID       string          `json:"deviceId"`
	PairingCode    string          `json:"pairingCode,omitempty"`
	IsPaired       bool            `json:"isPaired"`
	OrganisationID string          `json:"organisationId,omitempty"`
	DeviceName     string          `json:"deviceName,omitempty"`
	Plan           json.RawMessage `json:"plan,omitempty"`
}

// Store persists LocalState across reboots.
type Store interface {
	Load() (*LocalState, error)
	Save(*LocalState) error
	Clear() error
}

// Snapshot is the render decision for one clock tick. The renderer is a
// pure consumer; everything it needs is here.
type Snapshot struct {
	State        State
	Now          time.Time
	PairingCode  string
	DeviceName   string
	Phase        Phase
	Countdown    Countdown
	Plan         *model.DayPlan
	CurrentItem  int // index into Plan.Items, -1 before the first activity
	PlanChanged  bool
}

// Machine is the display's state machine. It owns all mutable client
// state; callers drive it with PollTick (network) and ClockTick
// (wall clock). Not safe for concurrent use; Run serializes both tickers
// on one goroutine.
type Machine struct {
	api   API
	clock Clock
	store Store

	state       State
	deviceID    string
	sharedID    atomic.Value // string copy of deviceID for other goroutines
	pairingCode string
	orgID       string
	deviceName  string
	planRaw     []byte
	plan        *model.DayPlan
	planDirty   bool
	saved       *LocalState // last state written to the store
}

func NewMachine(api API, clock Clock, store Store) *Machine {
	m := &Machine{
		api:   api,
		clock: clock,
		store: store,
		state: StateInit,
	}
	m.restore()
	return m
}

// restore resumes from the local store so a rebooted kiosk polls with its
// cached identity instead of re-registering.
func (m *Machine) restore() {
	local, err := m.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load local state, starting fresh")
		return
	}
	if local == nil || local.DeviceID == "" {
		return
	}

	m.saved = local
	m.setDeviceID(local.DeviceID)
	m.pairingCode = local.PairingCode
	m.orgID = local.OrganisationID
	m.deviceName = local.DeviceName
	m.state = StateAwaitingPair

	if local.IsPaired {
		m.state = StatePairedNoPlan
		if len(local.Plan) > 0 && !isJSONNull(local.Plan) {
			if plan := parsePlan(local.Plan); plan != nil {
				m.planRaw = local.Plan
				m.plan = plan
				m.state = StatePlanAssigned
			}
		}
	}

	log.Info().
		Str("deviceId", m.deviceID).
		Str("state", string(m.state)).
		Msg("resumed from local state")
}

// State returns the current network-driven state.
func (m *Machine) State() State { return m.state }

// DeviceID returns the locally persisted device identity. Unlike the rest
// of the machine it is safe to call from other goroutines; the push
// listener uses it to know which event stream to open.
func (m *Machine) DeviceID() string {
	if id, ok := m.sharedID.Load().(string); ok {
		return id
	}
	return ""
}

func (m *Machine) setDeviceID(id string) {
	m.deviceID = id
	m.sharedID.Store(id)
}

// PollTick performs one network poll and applies any resulting state
// transition. Transport failures are logged and swallowed; an unattended
// display never surfaces a network error, it just retries next tick.
func (m *Machine) PollTick(ctx context.Context) {
	if m.state == StateInit {
		m.initialize(ctx)
		return
	}

	status, err := m.api.Status(ctx, m.deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		// The server has no memory of us (database reset, stale-device
		// cleanup). Wipe everything and pair from scratch.
		log.Warn().Str("deviceId", m.deviceID).Msg("server lost our registration, restarting pairing")
		m.wipe()
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("status poll failed, retrying next tick")
		return
	}

	m.apply(status)
}

func (m *Machine) initialize(ctx context.Context) {
	res, err := m.api.Init(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("init failed, retrying next tick")
		return
	}

	m.setDeviceID(res.DeviceID)
	m.pairingCode = res.Code
	m.state = StateAwaitingPair
	m.persist()

	log.Info().
		Str("deviceId", m.deviceID).
		Str("code", m.pairingCode).
		Msg("display registered, awaiting pairing")
}

func (m *Machine) apply(status *StatusResponse) {
	if !status.IsPaired {
		// Either we never paired or an admin disconnected us; the
		// server hands out a fresh code either way. Cached
		// organisation and plan are discarded.
		if status.PairingCode != nil {
			m.pairingCode = *status.PairingCode
		}
		if m.state != StateAwaitingPair {
			log.Info().Str("deviceId", m.deviceID).Msg("display unpaired")
		}
		m.orgID = ""
		m.deviceName = ""
		m.planRaw = nil
		m.plan = nil
		m.state = StateAwaitingPair
		m.persist()
		return
	}

	if status.OrganisationID != nil {
		m.orgID = *status.OrganisationID
	}
	if status.DeviceName != nil {
		m.deviceName = *status.DeviceName
	}
	m.pairingCode = ""

	if len(status.DayPlan) == 0 || isJSONNull(status.DayPlan) {
		if m.state != StatePairedNoPlan {
			log.Info().Str("deviceId", m.deviceID).Msg("paired, waiting for plan")
		}
		m.planRaw = nil
		m.plan = nil
		m.state = StatePairedNoPlan
		m.persist()
		return
	}

	// Identical payloads must not reset scroll position or animations on
	// the renderer, so an unchanged plan is a no-op.
	if bytes.Equal(m.planRaw, status.DayPlan) {
		m.state = StatePlanAssigned
		return
	}

	plan := parsePlan(status.DayPlan)
	if plan == nil {
		log.Error().Str("deviceId", m.deviceID).Msg("unparseable day plan payload, keeping previous")
		return
	}

	m.planRaw = status.DayPlan
	m.plan = plan
	m.planDirty = true
	m.state = StatePlanAssigned
	m.persist()

	log.Info().
		Str("deviceId", m.deviceID).
		Str("dayPlanId", plan.ID).
		Time("date", plan.Date).
		Msg("day plan updated")
}

// ClockTick recomputes the render decision from the wall clock alone. It
// performs no network calls and no state mutation beyond consuming the
// plan-changed flag.
func (m *Machine) ClockTick() Snapshot {
	now := m.clock.Now()
	snap := Snapshot{
		State:       m.state,
		Now:         now,
		PairingCode: m.pairingCode,
		DeviceName:  m.deviceName,
		CurrentItem: -1,
	}

	if m.state == StatePlanAssigned && m.plan != nil {
		snap.Plan = m.plan
		snap.PlanChanged = m.planDirty
		m.planDirty = false
		snap.Phase = ComputePhase(now, m.plan.Date)

		switch snap.Phase {
		case PhaseCountdown:
			snap.Countdown = CountdownUntil(now, m.plan.Date)
		case PhaseRunning:
			snap.CurrentItem = CurrentActivityIndex(m.plan.Items, now)
		}
	}

	return snap
}

// Disconnect is the operator-triggered unbind. Local state is cleared even
// if the server call fails; the next poll cycle re-registers.
func (m *Machine) Disconnect(ctx context.Context) {
	if m.deviceID != "" {
		if err := m.api.Disconnect(ctx, m.deviceID); err != nil {
			log.Warn().Err(err).Msg("disconnect call failed")
		}
	}
	m.wipe()
}

// Reset is identical to Disconnect from the machine's point of view; any
// post-reset UX difference lives in the renderer.
func (m *Machine) Reset(ctx context.Context) {
	if m.deviceID != "" {
		if err := m.api.Reset(ctx, m.deviceID); err != nil {
			log.Warn().Err(err).Msg("reset call failed")
		}
	}
	m.wipe()
}

func (m *Machine) wipe() {
	m.setDeviceID("")
	m.pairingCode = ""
	m.orgID = ""
	m.deviceName = ""
	m.planRaw = nil
	m.plan = nil
	m.planDirty = false
	m.state = StateInit
	m.saved = nil

	if err := m.store.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed to clear local state")
	}
}

// persist writes LocalState through to the store, skipping the write when
// nothing changed since the last save. Every idle poll lands here, and on
// kiosk hardware that would otherwise grind flash storage once per tick.
func (m *Machine) persist() {
	state := &LocalState{
		DeviceID:       m.deviceID,
		PairingCode:    m.pairingCode,
		IsPaired:       m.state == StatePairedNoPlan || m.state == StatePlanAssigned,
		OrganisationID: m.orgID,
		DeviceName:     m.deviceName,
		Plan:           m.planRaw,
	}
	if sameLocalState(m.saved, state) {
		return
	}
	if err := m.store.Save(state); err != nil {
		log.Warn().Err(err).Msg("failed to persist local state")
		return
	}
	m.saved = state
}

func sameLocalState(a, b *LocalState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.DeviceID == b.DeviceID &&
		a.PairingCode == b.PairingCode &&
		a.IsPaired == b.IsPaired &&
		a.OrganisationID == b.OrganisationID &&
		a.DeviceName == b.DeviceName &&
		bytes.Equal(a.Plan, b.Plan)
}

// Run drives the machine with two independent tickers: a network poll on
// pollInterval and a one-second clock tick that re-renders. A nudge from
// the push channel forces an early poll; ignoring nudges entirely would
// only add latency, never change behavior.
func (m *Machine) Run(ctx context.Context, pollInterval time.Duration, nudge <-chan struct{}, render func(Snapshot)) {
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	clockTicker := time.NewTicker(time.Second)
	defer clockTicker.Stop()

	m.PollTick(ctx)
	render(m.ClockTick())

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			m.PollTick(ctx)
		case <-nudge:
			m.PollTick(ctx)
		case <-clockTicker.C:
			render(m.ClockTick())
		}
	}
}

func parsePlan(raw json.RawMessage) *model.DayPlan {
	var plan model.DayPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil
	}
	return &plan
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
