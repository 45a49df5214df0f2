package quacksql

import "context"

var std = New()

// Default returns the package-level Manager used by the top-level functions.
func Default() *Manager { return std }

// Connect opens database on the default Manager.
func Connect(database string, readOnly bool) (*Manager, error) {
	return std.Connect(database, readOnly)
}

// Module loads a directory of .sql files into the default Manager.
func Module(dir string) (*Manager, error) {
	return std.Module(dir)
}

// Query resolves name on the default Manager.
func Query(name string) (QueryFunc, error) {
	return std.Query(name)
}

// Invoke resolves and calls name on the default Manager.
func Invoke(name string, args ...any) (*Result, error) {
	return std.Invoke(name, args...)
}

// Names lists the queries loaded into the default Manager.
func Names() []string {
	return std.Names()
}

// Watch reloads dir into the default Manager whenever its .sql files change.
func Watch(ctx context.Context, dir string) error {
	return std.Watch(ctx, dir)
}
