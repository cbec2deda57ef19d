package watcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/appwatch/internal/workspace"
)

func TestEventKind_Names(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		name := k.String()
		require.NotEqual(t, "unknown", name)
		require.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
}

func TestEvent_JSON(t *testing.T) {
	app := App{Handle: 1, PID: 100, BundleID: "com.example.A", ActivationPolicy: workspace.PolicyAccessory}

	launched, err := json.Marshal(Event{Kind: KindLaunched})
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"launched","apps":[]}`, string(launched))

	hidden, err := json.Marshal(Event{Kind: KindHidden, App: app})
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"hidden","app":{
		"handle":1,"pid":100,"bundle_id":"com.example.A",
		"finished_launching":false,"activation_policy":"accessory",
		"hidden":false,"terminated":false}}`, string(hidden))
}

func TestEvent_String(t *testing.T) {
	a := App{PID: 1, Name: "Finder"}
	b := App{PID: 2, BundleID: "com.example.B"}

	require.Equal(t, "launched [Finder(1), com.example.B(2)]", Event{Kind: KindLaunched, Apps: []App{a, b}}.String())
	require.Equal(t, "activated Finder(1)", Event{Kind: KindActivated, App: a}.String())
}
