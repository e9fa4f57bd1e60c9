package cli

import (
	"fmt"
	"os"

	"github.com/fieldsync/fieldsync/internal/store"
)

// openStore opens the database named by --db, failing with a command error
// if the file does not exist. Opening never creates a database here -
// diagnostics against a mistyped path should fail loudly, not conjure an
// empty store.
func openStore(opts *RootOptions) (*store.Store, error) {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	s, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, nil
}
