//go:build js && wasm

package storage

import (
	"context"
	"errors"
	"syscall/js"
)

// LocalStorage is the browser's window.localStorage seen as a Medium. Keys are
// used as given and values are stored as their text, so page scripts read the
// same JSON the store writes.
//
//   - Documentation:
//     https://developer.mozilla.org/en-US/docs/Web/API/Window/localStorage
type LocalStorage struct {
	v js.Value
}

// NewLocalStorage returns the page's localStorage, or an error when the global
// is missing (workers, non-browser hosts).
func NewLocalStorage() (*LocalStorage, error) {
	v := js.Global().Get("localStorage")
	if v.IsUndefined() || v.IsNull() {
		return nil, errors.New("localStorage is not available")
	}
	return &LocalStorage{v: v}, nil
}

// Get returns the value for key, ErrNotFound when absent.
func (ls *LocalStorage) Get(_ context.Context, key string) ([]byte, error) {
	val := ls.v.Call("getItem", key)
	if val.IsNull() || val.IsUndefined() {
		return nil, ErrNotFound
	}
	return []byte(val.String()), nil
}

// Set stores value under key. setItem throws when the quota is exceeded; the
// panic is turned back into an error.
func (ls *LocalStorage) Set(_ context.Context, key string, value []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			panic(r)
		}
	}()
	ls.v.Call("setItem", key, string(value))
	return nil
}

// Close is a no-op.
func (ls *LocalStorage) Close() error {
	return nil
}
