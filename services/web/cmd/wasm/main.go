//go:build js && wasm

// Command wasm exposes the record store to page scripts, persisting into the
// browser's localStorage.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"syscall/js"

	"forbias/internal/util"
	"forbias/pkg/domain"
	"forbias/pkg/storage"
	"forbias/pkg/store"
)

var (
	jsJSON    = js.Global().Get("JSON")
	jsError   = js.Global().Get("Error")
	jsPromise = js.Global().Get("Promise")
)

func main() {
	logger := util.InitLogger("info")

	var medium storage.Medium
	if ls, err := storage.NewLocalStorage(); err != nil {
		logger.Warn("localStorage unavailable; store runs without persistence", "err", err)
	} else {
		medium = ls
	}
	b := &bindings{store: store.New(medium, store.WithLogger(logger))}

	js.Global().Set("forbiasCreateMessage", js.FuncOf(b.createMessage))
	js.Global().Set("forbiasGetMessages", js.FuncOf(b.getMessages))
	js.Global().Set("forbiasGetMessagesByRecipient", js.FuncOf(b.getMessagesByRecipient))
	js.Global().Set("forbiasLikeMessage", js.FuncOf(b.likeMessage))
	js.Global().Set("forbiasHasLikedMessage", js.FuncOf(b.hasLikedMessage))
	slog.Info("forbias store ready")

	select {}
}

type bindings struct {
	store *store.Store
}

// createMessage takes a draft object and returns a Promise of the stored record.
func (b *bindings) createMessage(_ js.Value, args []js.Value) any {
	var draft domain.Draft
	if len(args) > 0 {
		if err := json.Unmarshal([]byte(jsJSON.Call("stringify", args[0]).String()), &draft); err != nil {
			return rejected(err)
		}
	}
	return promise(func() (any, error) {
		msg, err := b.store.Create(context.Background(), draft)
		if err != nil {
			return nil, err
		}
		return toJS(msg)
	})
}

func (b *bindings) getMessages(js.Value, []js.Value) any {
	v, err := toJS(b.store.ListAll(context.Background()))
	if err != nil {
		return js.ValueOf([]any{})
	}
	return v
}

func (b *bindings) getMessagesByRecipient(_ js.Value, args []js.Value) any {
	v, err := toJS(b.store.ListByRecipient(context.Background(), stringArg(args, 0)))
	if err != nil {
		return js.ValueOf([]any{})
	}
	return v
}

// likeMessage returns a Promise resolving to undefined; unknown ids resolve too.
func (b *bindings) likeMessage(_ js.Value, args []js.Value) any {
	id := stringArg(args, 0)
	return promise(func() (any, error) {
		_, _, err := b.store.Like(context.Background(), id)
		return js.Undefined(), err
	})
}

func (b *bindings) hasLikedMessage(_ js.Value, args []js.Value) any {
	return b.store.HasLiked(context.Background(), stringArg(args, 0))
}

func stringArg(args []js.Value, i int) string {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

// toJS round-trips v through JSON so JS receives plain objects with the
// stored field names.
func toJS(v any) (js.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return js.Undefined(), err
	}
	return jsJSON.Call("parse", string(data)), nil
}

func promise(f func() (any, error)) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(_ js.Value, args []js.Value) any {
		resolve, reject := args[0], args[1]
		go func() {
			defer handler.Release()
			v, err := f()
			if err != nil {
				reject.Invoke(jsError.New(err.Error()))
				return
			}
			resolve.Invoke(v)
		}()
		return nil
	})
	return jsPromise.New(handler)
}

func rejected(err error) js.Value {
	return jsPromise.Call("reject", jsError.New(err.Error()))
}
