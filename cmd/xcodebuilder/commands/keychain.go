package commands

import (
	"io"
	"path/filepath"

	"git.home.luguber.info/inful/xcodebuilder/internal/config"
	"git.home.luguber.info/inful/xcodebuilder/internal/expand"
	errs "git.home.luguber.info/inful/xcodebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/xcodebuilder/internal/keychain"
	"git.home.luguber.info/inful/xcodebuilder/internal/runner"
)

// KeychainCmd groups the keychain subcommands.
type KeychainCmd struct {
	Unlock  KeychainUnlockCmd  `cmd:"" help:"Make a keychain the default and unlock it"`
	Restore KeychainRestoreCmd `cmd:"" help:"Reset the search list to the configured keychains"`
}

// KeychainUnlockCmd implements 'keychain unlock'.
type KeychainUnlockCmd struct {
	Name     string `arg:"" optional:"" help:"Configured keychain name (defaults to job.keychain_name)"`
	Path     string `help:"Unlock an unconfigured keychain at this path"`
	Password string `help:"Password for --path" env:"XCODEBUILDER_KEYCHAIN_PASSWORD"`
}

func (k *KeychainUnlockCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	name := k.Name
	if name == "" && k.Path == "" {
		name = cfg.Job.KeychainName
	}
	kc, err := keychain.Resolve(cfg.Keychains, name, k.Path, k.Password)
	if err != nil {
		return errs.WrapError(err, errs.CategoryConfig, "no keychain to unlock").
			Fatal().UserAction().WithContext("keychain", name).Build()
	}

	ctx, stop := signalContext()
	defer stop()
	if err := newUnlocker(cfg, runner.NewExecRunner(), workingDir(), g.out()).Unlock(ctx, kc); err != nil {
		return errs.KeychainError("keychain unlock failed").
			WithCause(err).WithContext("keychain", kc.Name).Build()
	}
	return nil
}

// KeychainRestoreCmd implements 'keychain restore'.
type KeychainRestoreCmd struct{}

func (k *KeychainRestoreCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()
	return newUnlocker(cfg, runner.NewExecRunner(), workingDir(), g.out()).Restore(ctx, cfg.Keychains, cfg.DefaultKeychain)
}

func newUnlocker(cfg *config.Config, r runner.Runner, dir string, out io.Writer) keychain.Unlocker {
	return keychain.Unlocker{
		Runner:   r,
		Security: cfg.Tools.Security,
		Dir:      dir,
		Output:   out,
		Expander: expand.FromProcess(),
	}
}

func workingDir() string {
	dir, err := filepath.Abs(".")
	if err != nil {
		return "."
	}
	return dir
}
