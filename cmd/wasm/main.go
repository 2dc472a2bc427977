//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"syscall/js"
	"time"

	"github.com/bodymap/bodymap/internal/collab"
	"github.com/bodymap/bodymap/internal/config"
	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/engine"
	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/typeid"
)

var (
	cfg     *config.Engine
	eng     *engine.Engine
	session *collab.Session
	channel *collab.WSChannel
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg = config.DefaultEngine()
	eng = engine.New(cfg.Options(typeid.NewPlayerID()))
	session = newSession(nil)

	api := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	api.Set("connect", js.FuncOf(connect))
	api.Set("disconnect", js.FuncOf(disconnect))
	api.Set("loadSnapshot", js.FuncOf(loadSnapshot))
	api.Set("loadSampleSnapshot", js.FuncOf(loadSampleSnapshot))
	api.Set("startStroke", js.FuncOf(startStroke))
	api.Set("paint", js.FuncOf(paint))
	api.Set("finishStroke", js.FuncOf(finishStroke))
	api.Set("erase", js.FuncOf(erase))
	api.Set("fill", js.FuncOf(fill))
	api.Set("placeSensation", js.FuncOf(placeSensation))
	api.Set("placeText", js.FuncOf(placeText))
	api.Set("editText", js.FuncOf(editText))
	api.Set("deleteText", js.FuncOf(deleteText))
	api.Set("createCustomEffect", js.FuncOf(createCustomEffect))
	api.Set("deleteCustomEffect", js.FuncOf(deleteCustomEffect))
	api.Set("undo", js.FuncOf(undo))
	api.Set("redo", js.FuncOf(redo))
	api.Set("clearAll", js.FuncOf(clearAll))
	api.Set("resetAll", js.FuncOf(resetAll))
	api.Set("setRotation", js.FuncOf(setRotation))
	api.Set("moveCursor", js.FuncOf(moveCursor))

	// --- Queries (frontend ← backend) ---
	api.Set("render", js.FuncOf(render))
	api.Set("pickText", js.FuncOf(pickText))
	api.Set("getSnapshot", js.FuncOf(getSnapshot))
	api.Set("getState", js.FuncOf(getState))
	api.Set("getPeers", js.FuncOf(getPeers))
	api.Set("getPlayerId", js.FuncOf(getPlayerID))

	js.Global().Set("bodymapEngine", api)
	js.Global().Set("bodymapWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func newSession(ch collab.Channel) *collab.Session {
	opts := cfg.SessionOptions(eng, ch)
	opts.OnChange = notifyChange
	s, err := collab.NewSession(opts)
	if err != nil {
		slog.Error("create session", "error", err)
		return nil
	}
	return s
}

// notifyChange tells the page a remote event changed the canvas.
func notifyChange(msgType string) {
	if cb := js.Global().Get("bodymapOnChange"); cb.Type() == js.TypeFunction {
		cb.Invoke(msgType)
	}
}

func notifyState(state collab.ConnState) {
	if cb := js.Global().Get("bodymapOnConnection"); cb.Type() == js.TypeFunction {
		cb.Invoke(string(state))
	}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func failMsg(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

func decodeArg(args []js.Value, i int, v any) error {
	if len(args) <= i {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal([]byte(args[i].String()), v)
}

// --- Command Handlers ---

// connect(serverURL, roomID, displayName) joins a room. Dialing blocks, so
// it runs off the JS event loop and reports through bodymapOnConnection.
func connect(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("missing server url or room id")
	}
	server, roomID := args[0].String(), args[1].String()
	name := ""
	if len(args) > 2 {
		name = args[2].String()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ch, err := collab.DialRoom(ctx, server, roomID, session.PlayerID(), collab.DialOptions{
			DisplayName: name,
			OnState:     notifyState,
		})
		if err != nil {
			slog.Warn("connect failed", "room", roomID, "error", err)
			notifyState(collab.StateDisconnected)
			return
		}
		session.Leave()
		if channel != nil {
			channel.Close()
		}
		channel = ch
		session = newSession(ch)
		session.Join()
	}()
	return ok()
}

func disconnect(this js.Value, args []js.Value) interface{} {
	session.Leave()
	if channel != nil {
		channel.Close()
		channel = nil
	}
	session = newSession(nil)
	return ok()
}

func loadSnapshot(this js.Value, args []js.Value) interface{} {
	var snap document.Snapshot
	if err := decodeArg(args, 0, &snap); err != nil {
		return fail(err)
	}
	session.View(func(e *engine.Engine) { e.LoadSnapshot(&snap) })
	return ok()
}

func loadSampleSnapshot(this js.Value, args []js.Value) interface{} {
	session.View(func(e *engine.Engine) {
		e.LoadSnapshot(document.NewSampleSnapshot(e.PlayerID()))
	})
	return ok()
}

// startStroke(brushSize, color)
func startStroke(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("missing brush size or color")
	}
	id, started := session.StartStroke(args[0].Float(), args[1].String())
	if !started {
		return failMsg("no player id")
	}
	return js.ValueOf(id)
}

// paint(hitJSON) takes a raycast hit: {point:{x,y,z}, meshName, faceNormal}.
func paint(this js.Value, args []js.Value) interface{} {
	var hit geom.Hit
	if err := decodeArg(args, 0, &hit); err != nil {
		return fail(err)
	}
	m := session.Paint(hit)
	if m == nil {
		return nil
	}
	return toJSON(m)
}

func finishStroke(this js.Value, args []js.Value) interface{} {
	s, err := session.FinishStroke()
	if err != nil {
		slog.Warn("broadcast stroke", "error", err)
	}
	if s == nil {
		return nil
	}
	return toJSON(s)
}

// erase(centerJSON, radius, surface)
func erase(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return failMsg("missing center, radius or surface")
	}
	var center geom.Point
	if err := decodeArg(args, 0, &center); err != nil {
		return fail(err)
	}
	res, err := session.Erase(center, args[1].Float(), geom.Surface(args[2].String()))
	if err != nil {
		slog.Warn("broadcast erase", "error", err)
	}
	return js.ValueOf(len(res.Strokes) + len(res.TextMarks) + len(res.SensationMarks))
}

// fill(partName, color)
func fill(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("missing part name or color")
	}
	if err := session.Fill(args[0].String(), args[1].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func placeSensation(this js.Value, args []js.Value) interface{} {
	var m document.SensationMark
	if err := decodeArg(args, 0, &m); err != nil {
		return fail(err)
	}
	placed, err := session.PlaceSensation(m)
	if err != nil {
		slog.Warn("broadcast sensation", "error", err)
	}
	return toJSON(placed)
}

func placeText(this js.Value, args []js.Value) interface{} {
	var t document.TextMark
	if err := decodeArg(args, 0, &t); err != nil {
		return fail(err)
	}
	placed, err := session.PlaceText(t)
	if err != nil {
		slog.Warn("broadcast text", "error", err)
	}
	return toJSON(placed)
}

// editText(id, text)
func editText(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("missing id or text")
	}
	if err := session.EditText(args[0].String(), args[1].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func deleteText(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("missing id")
	}
	if err := session.DeleteText(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func createCustomEffect(this js.Value, args []js.Value) interface{} {
	var fx document.CustomEffect
	if err := decodeArg(args, 0, &fx); err != nil {
		return fail(err)
	}
	created, err := session.CreateCustomEffect(fx)
	if err != nil {
		slog.Warn("broadcast custom effect", "error", err)
	}
	return toJSON(created)
}

func deleteCustomEffect(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("missing id")
	}
	if err := session.DeleteCustomEffect(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

func undo(this js.Value, args []js.Value) interface{} {
	item, err := session.Undo()
	if err != nil {
		slog.Warn("broadcast undo", "error", err)
	}
	return js.ValueOf(item != nil)
}

func redo(this js.Value, args []js.Value) interface{} {
	item, err := session.Redo()
	if err != nil {
		slog.Warn("broadcast redo", "error", err)
	}
	return js.ValueOf(item != nil)
}

func clearAll(this js.Value, args []js.Value) interface{} {
	if err := session.ClearAll(); err != nil {
		return fail(err)
	}
	return ok()
}

func resetAll(this js.Value, args []js.Value) interface{} {
	if err := session.ResetAll(); err != nil {
		return fail(err)
	}
	return ok()
}

func setRotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	if err := session.SetRotation(args[0].Float()); err != nil {
		return fail(err)
	}
	return ok()
}

// moveCursor(pointJSON, surface)
func moveCursor(this js.Value, args []js.Value) interface{} {
	var p geom.Point
	if err := decodeArg(args, 0, &p); err != nil {
		return fail(err)
	}
	surface := geom.SurfaceBody
	if len(args) > 1 {
		surface = geom.Surface(args[1].String())
	}
	sent, err := session.MoveCursor(p, surface)
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(sent)
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	var out string
	session.View(func(e *engine.Engine) { out = e.Render() })
	return js.ValueOf(out)
}

// pickText(pointJSON, surface) returns the text mark under the point.
func pickText(this js.Value, args []js.Value) interface{} {
	var p geom.Point
	if err := decodeArg(args, 0, &p); err != nil {
		return fail(err)
	}
	surface := geom.SurfaceWhiteboard
	if len(args) > 1 {
		surface = geom.Surface(args[1].String())
	}
	var (
		t     document.TextMark
		found bool
	)
	session.View(func(e *engine.Engine) { t, found = e.PickText(p, surface) })
	if !found {
		return nil
	}
	return toJSON(t)
}

func getSnapshot(this js.Value, args []js.Value) interface{} {
	return toJSON(session.Snapshot())
}

// getState reports history and connection status for the toolbar.
func getState(this js.Value, args []js.Value) interface{} {
	var state struct {
		CanUndo      bool    `json:"canUndo"`
		CanRedo      bool    `json:"canRedo"`
		HistoryIndex int     `json:"historyIndex"`
		HistoryLen   int     `json:"historyLength"`
		Marks        int     `json:"marks"`
		Rotation     float64 `json:"rotation"`
		Connection   string  `json:"connection"`
	}
	session.View(func(e *engine.Engine) {
		state.CanUndo = e.CanUndo()
		state.CanRedo = e.CanRedo()
		state.HistoryIndex = e.HistoryIndex()
		state.HistoryLen = len(e.HistoryItems())
		state.Marks = len(e.AllMarks())
		state.Rotation = e.Rotation()
	})
	state.Connection = string(session.ConnState())
	return toJSON(state)
}

func getPeers(this js.Value, args []js.Value) interface{} {
	return toJSON(session.Peers())
}

func getPlayerID(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(session.PlayerID())
}
