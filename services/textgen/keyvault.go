// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package textgen

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// MinMlockLimitKB is the minimum mlock limit required in kilobytes.
// The vault only holds a short credential, but memguard needs room for
// its guard pages and canaries.
const MinMlockLimitKB = 64

var (
	// memguardInitOnce ensures memguard initialization happens only once.
	memguardInitOnce sync.Once

	// mlockSufficient is set during initialization to indicate if secure memory is available.
	mlockSufficient bool

	// currentMlockLimitKB stores the current mlock limit for logging.
	currentMlockLimitKB int64
)

// KeyVault seals a provider credential in locked memory so it is not
// swapped to disk and does not linger after shutdown. The credential is
// only materialized inside WithSecret, for the duration of one call.
//
// If the system mlock limit is too low, NewKeyVault fails unless
// MARKETPULSE_INSECURE_MEMORY=true, in which case the credential is held
// in ordinary memory with a warning.
//
// Thread Safety: Safe for concurrent use.
type KeyVault struct {
	enclave *memguard.Enclave

	// insecure holds the credential when running without mlock.
	insecure string
}

// NewKeyVault seals the secret. The input slice is wiped before returning.
func NewKeyVault(secret []byte) (*KeyVault, error) {
	if len(secret) == 0 {
		return nil, errors.New("keyvault: secret must not be empty")
	}

	initSecureMemory()

	if !mlockSufficient {
		if os.Getenv("MARKETPULSE_INSECURE_MEMORY") == "true" {
			slog.Warn("SECURITY: holding credential in unlocked memory",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
				"env_override", "MARKETPULSE_INSECURE_MEMORY=true",
			)
			vault := &KeyVault{insecure: string(secret)}
			wipeBytes(secret)
			return vault, nil
		}
		return nil, fmt.Errorf(
			"mlock limit insufficient: have %d KB, need %d KB. "+
				"Configure system limits or set MARKETPULSE_INSECURE_MEMORY=true",
			currentMlockLimitKB, MinMlockLimitKB,
		)
	}

	// NewEnclave wipes the source slice
	return &KeyVault{enclave: memguard.NewEnclave(secret)}, nil
}

// WithSecret opens the vault and hands the credential to fn. The working
// copy is wiped when fn returns, so fn must not retain the string; anything
// that needs the credential past the call must use it inside fn.
func (v *KeyVault) WithSecret(fn func(secret string) error) error {
	if v.enclave == nil {
		return fn(v.insecure)
	}

	buf, err := v.enclave.Open()
	if err != nil {
		return fmt.Errorf("keyvault: open enclave: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.String())
}

// Secure reports whether the credential is held in locked memory.
func (v *KeyVault) Secure() bool {
	return v.enclave != nil
}

// PurgeSecureMemory wipes all memguard-allocated memory. Call during
// graceful shutdown; existing vaults are unusable afterwards.
func PurgeSecureMemory() {
	memguard.Purge()
}

// initSecureMemory initializes memguard and checks mlock limits once.
func initSecureMemory() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("Secure memory initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		} else {
			slog.Warn("mlock limit insufficient for secure memory",
				"current_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		}
	})
}

// checkMlockLimit queries the kernel for the mlock resource limit.
// Returns -1 for the limit when it is unlimited or unknown.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// wipeBytes zeros a byte slice (best effort).
func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
