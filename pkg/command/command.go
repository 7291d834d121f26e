package command

import (
	"maps"

	"github.com/pg-sharding/ringkv/pkg/models/kverror"
)

// Command is a reversible in-memory mutation.
type Command interface {
	Do() error
	Undo() error
}

func NewDelete[T any](m map[string]T, key string) *Delete[T] {
	return &Delete[T]{m: m, key: key}
}

type Delete[T any] struct {
	m       map[string]T
	key     string
	value   T
	present bool
}

func (c *Delete[T]) Do() error {
	c.value, c.present = c.m[c.key]
	delete(c.m, c.key)
	return nil
}

func (c *Delete[T]) Undo() error {
	if c.present {
		c.m[c.key] = c.value
	}
	return nil
}

// Present reports whether the key existed when Do ran.
func (c *Delete[T]) Present() bool {
	return c.present
}

func NewUpdate[T any](m map[string]T, key string, value T) *Update[T] {
	return &Update[T]{m: m, key: key, value: value}
}

type Update[T any] struct {
	m         map[string]T
	key       string
	value     T
	prevValue T
	present   bool
}

func (c *Update[T]) Do() error {
	c.prevValue, c.present = c.m[c.key]
	c.m[c.key] = c.value
	return nil
}

func (c *Update[T]) Undo() error {
	if !c.present {
		delete(c.m, c.key)
	} else {
		c.m[c.key] = c.prevValue
	}
	return nil
}

// Present reports whether the key existed when Do ran.
func (c *Update[T]) Present() bool {
	return c.present
}

func NewDrop[T any](m map[string]T) *Drop[T] {
	return &Drop[T]{m: m}
}

type Drop[T any] struct {
	m    map[string]T
	copy map[string]T
}

func (c *Drop[T]) Do() error {
	c.copy = maps.Clone(c.m)
	clear(c.m)
	return nil
}

func (c *Drop[T]) Undo() error {
	maps.Copy(c.m, c.copy)
	return nil
}

func NewCustom(do func() error, undo func() error) *Custom {
	return &Custom{do: do, undo: undo}
}

type Custom struct {
	do   func() error
	undo func() error
}

func (c *Custom) Do() error {
	return c.do()
}

func (c *Custom) Undo() error {
	return c.undo()
}

// Execute runs commands in order and then persists the result with saver.
// When a command or the saver fails, the completed commands are undone
// newest first and the original error is returned.
func Execute(saver func() error, commands ...Command) error {
	completed := len(commands)
	var err error
	for i, c := range commands {
		if err = c.Do(); err != nil {
			completed = i
			break
		}
	}
	if err == nil {
		err = saver()
	}
	if err == nil {
		return nil
	}

	for i := completed - 1; i >= 0; i-- {
		if undoErr := commands[i].Undo(); undoErr != nil {
			return kverror.Newf(kverror.KV_ROLLBACK_INCOMPLETE, "failed to undo command %s while: %s", undoErr, err)
		}
	}
	return err
}
