package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/wafer-yield/internal/services"
)

// stubTab records the messages it receives.
type stubTab struct {
	name          string
	width, height int
	msgs          []tea.Msg
}

func (s *stubTab) Init() tea.Cmd { return nil }
func (s *stubTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	s.msgs = append(s.msgs, msg)
	return s, nil
}
func (s *stubTab) View() string { return "tab:" + s.name }
func (s *stubTab) SetSize(w, h int) {
	s.width, s.height = w, h
}
func (s *stubTab) ShortHelp() []key.Binding {
	return []key.Binding{key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "toggle percent"))}
}
func (s *stubTab) FullHelp() [][]key.Binding { return [][]key.Binding{s.ShortHelp()} }

func newReadyModel(mgr *services.Manager) (*Model, []*stubTab) {
	model := NewModel(context.Background(), mgr)
	stubs := []*stubTab{{name: "bins"}, {name: "subbins"}, {name: "stats"}, {name: "info"}}
	tabs := make([]Tab, len(stubs))
	for i, s := range stubs {
		tabs[i] = s
	}
	model.SetTabs(tabs)
	model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return model, stubs
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	model := NewModel(context.Background(), nil)
	if model.GetState() == nil {
		t.Error("State should be initialized")
	}
	if model.GetActiveTab() != TabBins {
		t.Error("Default tab should be Bins")
	}
	if len(model.tabs) != 4 {
		t.Errorf("Should have 4 tab placeholders, got %d", len(model.tabs))
	}
	if model.IsReady() {
		t.Error("Model should not be ready before the first WindowSizeMsg")
	}
}

func TestTabID_String(t *testing.T) {
	if TabSubBins.String() != "Sub-bins" || TabInfo.String() != "Info" {
		t.Error("unexpected tab names")
	}
	if TabID(42).String() != "Unknown" {
		t.Error("out of range tab should be Unknown")
	}
}

func TestModel_Init(t *testing.T) {
	model := NewModel(context.Background(), nil)
	if model.Init() == nil {
		t.Error("Init returned nil command")
	}
	notifs := model.GetState().GetNotifications()
	if len(notifs) != 1 || notifs[0].ID != LoadingNotificationID {
		t.Errorf("Init should show the loading notification, got %v", notifs)
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model, stubs := newReadyModel(nil)

	if !model.IsReady() {
		t.Error("Model should be ready after WindowSizeMsg")
	}
	for _, s := range stubs {
		if s.width != 100 || s.height != 25 {
			t.Errorf("tab %s size = %dx%d, want 100x25", s.name, s.width, s.height)
		}
	}
}

func TestModel_TabKeys(t *testing.T) {
	model, _ := newReadyModel(nil)

	tests := []struct {
		msg  tea.KeyMsg
		want TabID
	}{
		{runes("2"), TabSubBins},
		{runes("4"), TabInfo},
		{tea.KeyMsg{Type: tea.KeyTab}, TabBins},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, TabInfo},
		{runes("3"), TabStats},
		{tea.KeyMsg{Type: tea.KeyRight}, TabInfo},
		{runes("1"), TabBins},
	}
	for _, tt := range tests {
		model.Update(tt.msg)
		if model.GetActiveTab() != tt.want {
			t.Errorf("after %q active tab = %v, want %v", tt.msg.String(), model.GetActiveTab(), tt.want)
		}
	}

	model.Update(TabSwitchMsg{Tab: TabStats})
	if model.GetActiveTab() != TabStats {
		t.Error("TabSwitchMsg should switch tabs")
	}
}

func TestModel_UpdateForwardsToActiveTab(t *testing.T) {
	model, stubs := newReadyModel(nil)
	model.Update(runes("2"))
	model.Update(runes("p"))

	if len(stubs[TabSubBins].msgs) == 0 {
		t.Fatal("active tab should receive messages")
	}
	last := stubs[TabSubBins].msgs[len(stubs[TabSubBins].msgs)-1]
	if km, ok := last.(tea.KeyMsg); !ok || km.String() != "p" {
		t.Errorf("last message = %#v", last)
	}
	for _, m := range stubs[TabStats].msgs {
		if km, ok := m.(tea.KeyMsg); ok && km.String() == "p" {
			t.Error("inactive tab should not receive keys")
		}
	}
}

func TestModel_Update_Tick(t *testing.T) {
	model := NewModel(context.Background(), nil)
	if _, cmd := model.Update(TickMsg{Time: time.Now()}); cmd == nil {
		t.Error("TickMsg should return a command (next tick)")
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(context.Background(), nil)

	if !strings.Contains(model.View(), "Generating reports...") {
		t.Error("View should show the loading text when not ready")
	}

	model.Update(tea.WindowSizeMsg{Width: 100, Height: 24})
	view := model.View()
	if !strings.Contains(view, "Bins") || !strings.Contains(view, "Sub-bins") {
		t.Error("View should show the tab names")
	}
	if !strings.Contains(view, "Nothing to show here.") {
		t.Error("View should show placeholder text")
	}

	model, _ = newReadyModel(nil)
	if !strings.Contains(model.View(), "tab:bins") {
		t.Error("View should render the active tab")
	}
}

func TestModel_Help(t *testing.T) {
	model, _ := newReadyModel(nil)

	model.Update(ToggleHelpMsg{})
	view := model.View()
	if !strings.Contains(view, "Keyboard Shortcuts") {
		t.Error("View should show help modal")
	}
	if !strings.Contains(view, "toggle percent") {
		t.Error("help should list the active tab bindings")
	}

	// Tabs do not switch while help is open.
	model.Update(runes("3"))
	if model.GetActiveTab() != TabBins {
		t.Error("tab switch should be ignored while help is shown")
	}

	model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if model.showHelp {
		t.Error("Esc should close help")
	}
}

func TestModel_Notifications(t *testing.T) {
	model, _ := newReadyModel(nil)

	_, cmd := model.Update(AddNotificationMsg{Message: "Test Note", Type: NotificationInfo, Duration: time.Minute})
	if cmd == nil {
		t.Error("timed notification should schedule its removal")
	}
	notifs := model.GetState().GetNotifications()
	if len(notifs) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifs))
	}
	if !strings.Contains(model.View(), "Test Note") {
		t.Error("View should show notification")
	}

	model.Update(RemoveNotificationMsg{ID: notifs[0].ID})
	if len(model.GetState().GetNotifications()) != 0 {
		t.Error("RemoveNotificationMsg should remove the notification")
	}
}

func TestModel_LoadingMessages(t *testing.T) {
	model := NewModel(context.Background(), nil)

	model.Update(StartLoadingMsg{Resource: "output"})
	if !model.GetState().Loading.Output {
		t.Error("Loading.Output should be true")
	}
	notifs := model.GetState().GetNotifications()
	if len(notifs) != 1 || notifs[0].Message != "Writing reports..." {
		t.Errorf("unexpected notifications %v", notifs)
	}

	model.Update(StopLoadingMsg{Resource: "output"})
	if model.GetState().Loading.Output {
		t.Error("Loading.Output should be false")
	}
	// Initial is still loading so the spinner stays.
	if len(model.GetState().GetNotifications()) != 1 {
		t.Error("loading notification should stay while initial load runs")
	}
}

func firstNotification(t *testing.T, cmds []tea.Cmd) AddNotificationMsg {
	t.Helper()
	if len(cmds) == 0 {
		t.Fatal("expected a notification command")
	}
	msg, ok := cmds[0]().(AddNotificationMsg)
	if !ok {
		t.Fatalf("expected AddNotificationMsg, got %T", cmds[0]())
	}
	return msg
}

func TestModel_ReportsLoaded(t *testing.T) {
	model := NewModel(context.Background(), nil)
	model.Init()

	snap := &services.Snapshot{InputPath: "dies.csv", Records: 1200, Wafers: []string{"W1", "W2"}}
	if cmds := model.handleReportsLoaded(ReportsLoadedMsg{Snapshot: snap}); len(cmds) != 0 {
		t.Error("the initial load should not raise a notification")
	}
	state := model.GetState()
	if state.GetSnapshot() != snap || state.IsInitialLoading() {
		t.Error("initial load should store the snapshot and finish loading")
	}
	if len(state.GetNotifications()) != 0 {
		t.Error("loading notification should be cleared")
	}

	msg := firstNotification(t, model.handleReportsLoaded(ReportsLoadedMsg{Snapshot: snap}))
	if msg.Type != NotificationSuccess || msg.Message != "Regenerated 1,200 dies on 2 wafers" {
		t.Errorf("unexpected notification %#v", msg)
	}

	msg = firstNotification(t, model.handleReportsLoaded(ReportsLoadedMsg{Error: errors.New("bad header")}))
	if msg.Type != NotificationError || !strings.Contains(msg.Message, "bad header") {
		t.Errorf("unexpected notification %#v", msg)
	}
	if state.GetSnapshot() != snap || state.GetError() == nil {
		t.Error("a failed run should keep the previous snapshot")
	}
}

func TestModel_ReportsWritten(t *testing.T) {
	model := NewModel(context.Background(), nil)

	msg := firstNotification(t, model.handleReportsWritten(ReportsWrittenMsg{Written: []string{"a", "b"}}))
	if msg.Message != "Wrote 2 tables" {
		t.Errorf("Message = %q", msg.Message)
	}
	if got := model.GetState().GetWritten(); len(got) != 2 {
		t.Errorf("written = %v", got)
	}

	msg = firstNotification(t, model.handleReportsWritten(ReportsWrittenMsg{Error: errors.New("disk full")}))
	if msg.Type != NotificationError {
		t.Errorf("Type = %v, want error", msg.Type)
	}
}

func TestModel_HandleServiceEvent(t *testing.T) {
	model := NewModel(context.Background(), nil)
	state := model.GetState()

	if cmd := model.handleServiceEvent(services.InputChangedEvent{Path: "/data/dies.csv"}); cmd != nil {
		t.Error("InputChangedEvent should not return a command")
	}
	notifs := state.GetNotifications()
	if len(notifs) != 1 || notifs[0].Message != "dies.csv changed, regenerating..." {
		t.Errorf("unexpected notifications %v", notifs)
	}

	snap := &services.Snapshot{InputPath: "dies.csv"}
	cmd := model.handleServiceEvent(services.ReportsUpdatedEvent{Snapshot: snap, Written: []string{"df1-gen"}})
	if cmd == nil {
		t.Fatal("ReportsUpdatedEvent should notify")
	}
	if state.GetSnapshot() != snap || state.AnyLoading() {
		t.Error("ReportsUpdatedEvent should store the snapshot and stop loading")
	}

	cmd = model.handleServiceEvent(services.ErrorEvent{Service: "report", Error: errors.New("boom")})
	if cmd == nil {
		t.Fatal("Error event should trigger notification command")
	}
	if msg := cmd().(AddNotificationMsg); msg.Message != "[report] boom" {
		t.Errorf("Message = %q", msg.Message)
	}
	if state.GetError() == nil {
		t.Error("report errors should be recorded")
	}
}

func TestModel_ServiceEventResubscribes(t *testing.T) {
	model := NewModel(context.Background(), nil)
	ch := make(chan services.ServiceEvent, 1)
	model.Update(SubscriptionEventMsg{Channel: ch})

	cmds := model.handleServiceEventMsg(ServiceEventMsg{Event: services.InputChangedEvent{Path: "x"}})
	if len(cmds) != 1 {
		t.Fatalf("expected the wait command only, got %d commands", len(cmds))
	}
	ch <- services.ErrorEvent{Service: "watcher", Error: errors.New("gone")}
	if _, ok := cmds[0]().(ServiceEventMsg); !ok {
		t.Error("wait command should deliver the next event")
	}
}

func TestModel_RefreshAndWrite(t *testing.T) {
	model := NewModel(context.Background(), nil)
	if model.refresh() != nil || model.writeReports() != nil {
		t.Error("without services refresh and write do nothing")
	}

	mgr := newTestManager(t)
	model, _ = newReadyModel(mgr)

	msg := model.writeReports()()
	if add, ok := msg.(AddNotificationMsg); !ok || add.Message != "No reports to write yet" {
		t.Errorf("write before the first load = %#v", msg)
	}

	loaded := model.commands.Generate()().(ReportsLoadedMsg)
	model.Update(loaded)
	if model.GetState().GetSnapshot() == nil {
		t.Fatal("snapshot should be stored")
	}
	if model.writeReports() == nil || model.refresh() == nil {
		t.Error("refresh and write should return commands once loaded")
	}
	if !strings.Contains(model.View(), "dies.csv · 4 dies · 2 wafers") {
		t.Error("navbar should summarize the snapshot")
	}
}
