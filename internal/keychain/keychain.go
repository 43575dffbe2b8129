// Package keychain prepares macOS keychains for code signing with the security tool.
package keychain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/expand"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/logfields"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// Unlock sequence failures, one per security subcommand.
var (
	ErrNotConfigured = errors.New("keychain not configured")
	ErrSearchList    = errors.New("failed to set the keychain search list")
	ErrDefault       = errors.New("failed to set the default keychain")
	ErrUnlock        = errors.New("failed to unlock the keychain")
	ErrShowInfo      = errors.New("failed to query keychain info")
	ErrRestore       = errors.New("failed to restore keychains")
)

// Resolve picks the keychain for a job: a configured keychain by name, else an
// ad-hoc keychain from an inline path. ErrNotConfigured when neither applies.
func Resolve(configured []config.Keychain, name, path, password string) (config.Keychain, error) {
	if name != "" {
		for _, k := range configured {
			if k.Name == name {
				return k, nil
			}
		}
	}
	if path != "" {
		return config.Keychain{Path: path, Password: password}, nil
	}
	return config.Keychain{}, ErrNotConfigured
}

// Unlocker runs the security tool.
type Unlocker struct {
	Runner   runner.Runner
	Security string
	Dir      string
	Env      []string
	Output   io.Writer
	// Expander resolves placeholders in keychain paths and passwords; nil leaves them as is.
	Expander expand.Expander
}

// Unlock makes kc the only searchable keychain and the user default, unlocks it,
// then queries its info so that later signing does not prompt for the password.
// Every step must exit zero.
func (u Unlocker) Unlock(ctx context.Context, kc config.Keychain) error {
	path := u.expand(kc.Path)
	password := u.expand(kc.Password)
	slog.Info("Unlocking keychain", logfields.Keychain(kc.Name), logfields.Path(path))

	if err := u.run(ctx, ErrSearchList, "list-keychains", "-s", path); err != nil {
		return err
	}
	if err := u.run(ctx, ErrDefault, "default-keychain", "-d", "user", "-s", path); err != nil {
		return err
	}
	var unlock runner.Command
	if password == "" {
		unlock = u.command("unlock-keychain", path)
	} else {
		unlock = u.command("unlock-keychain", "-p", password, path)
		unlock.Masked = []int{2}
	}
	if err := u.exec(ctx, ErrUnlock, unlock); err != nil {
		return err
	}

	info := u.command("show-keychain-info", path)
	info.Stdout = io.Discard
	return u.exec(ctx, ErrShowInfo, info)
}

// Restore resets the search list to every configured in-search-path keychain and
// re-selects the default keychain. Failures are warnings: the build itself is
// not affected, but the machine may need attention.
func (u Unlocker) Restore(ctx context.Context, keychains []config.Keychain, defaultName string) error {
	args := []string{"list-keychains", "-s"}
	var def *config.Keychain
	for i, k := range keychains {
		if !k.InSearchPath || k.Path == "" {
			continue
		}
		args = append(args, u.expand(k.Path))
		if def == nil && defaultName != "" && k.Name == defaultName {
			def = &keychains[i]
		}
	}

	if err := u.exec(ctx, ErrRestore, u.command(args...)); err != nil {
		return errs.WrapError(err, errs.CategoryKeychain, "keychain search list not restored").Warning().Build()
	}
	if def == nil {
		return nil
	}
	if err := u.run(ctx, ErrRestore, "default-keychain", "-d", "user", "-s", u.expand(def.Path)); err != nil {
		return errs.WrapError(err, errs.CategoryKeychain, "default keychain not restored").
			Warning().WithContext("keychain", def.Name).Build()
	}
	return nil
}

func (u Unlocker) expand(s string) string {
	if u.Expander == nil || s == "" {
		return s
	}
	return expand.Lenient(u.Expander, s)
}

func (u Unlocker) command(args ...string) runner.Command {
	return runner.Command{Path: u.Security, Args: args, Dir: u.Dir, Env: u.Env, Stdout: u.Output}
}

func (u Unlocker) run(ctx context.Context, sentinel error, args ...string) error {
	return u.exec(ctx, sentinel, u.command(args...))
}

func (u Unlocker) exec(ctx context.Context, sentinel error, cmd runner.Command) error {
	code, err := u.Runner.Run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited %d", sentinel, cmd.String(), code)
	}
	return nil
}
