package jail

import "fmt"

// Jail identifies a FreeBSD jail by its jid.
type Jail struct {
	jid int32
}

// JID returns the jail's numeric identifier.
func (j Jail) JID() int32 { return j.jid }

// Create allocates a new jail from cfg via jail_set(JAIL_CREATE).
func Create(cfg *Config) (Jail, error) {
	jid, err := jailSet(cfg, jailFlagCreate)
	if err != nil {
		return Jail{}, fmt.Errorf("jail: create: %w", err)
	}
	return Jail{jid: jid}, nil
}

// Find resolves an existing jail by name via jail_get.
func Find(name string) (Jail, error) {
	cfg := NewConfig()
	cfg.MustSet("name", StringParam(name))
	jid, err := jailGet(cfg)
	if err != nil {
		return Jail{}, fmt.Errorf("jail: find %q: %w", name, err)
	}
	return Jail{jid: jid}, nil
}

// FindByJID wraps a known jid without a syscall round trip.
func FindByJID(jid int32) Jail { return Jail{jid: jid} }

// Attach moves the calling process into the jail via jail_attach(2).
func (j Jail) Attach() error {
	if err := jailAttach(j.jid); err != nil {
		return fmt.Errorf("jail: attach %d: %w", j.jid, err)
	}
	return nil
}

// Remove tears the jail down via jail_remove(2). Already-removed jails
// (EINVAL) are treated as success, so delete stays idempotent.
func (j Jail) Remove() error {
	if err := jailRemove(j.jid); err != nil {
		if !isEINVAL(err) {
			return fmt.Errorf("jail: remove %d: %w", j.jid, err)
		}
	}
	return nil
}

// GetString reads a string-valued parameter from the jail.
func (j Jail) GetString(key string) (string, error) {
	cfg := NewConfig()
	cfg.MustSet("jid", Uint32Param(uint32(j.jid)))
	cfg.MustSet(key, StringParam(""))
	if _, err := jailGet(cfg); err != nil {
		return "", fmt.Errorf("jail: get %q: %w", key, err)
	}
	p, _ := cfg.Get(key)
	return string(p.(StringParam)), nil
}

// GetUint32 reads a uint32-valued parameter from the jail.
func (j Jail) GetUint32(key string) (uint32, error) {
	cfg := NewConfig()
	cfg.MustSet("jid", Uint32Param(uint32(j.jid)))
	cfg.MustSet(key, Uint32Param(0))
	if _, err := jailGet(cfg); err != nil {
		return 0, fmt.Errorf("jail: get %q: %w", key, err)
	}
	p, _ := cfg.Get(key)
	return uint32(p.(Uint32Param)), nil
}

// SetUint32 updates a single uint32 parameter on a live jail via
// jail_set(JAIL_UPDATE).
func (j Jail) SetUint32(key string, val uint32) error {
	cfg := NewConfig()
	cfg.MustSet("jid", Uint32Param(uint32(j.jid)))
	cfg.MustSet(key, Uint32Param(val))
	if _, err := jailSet(cfg, jailFlagUpdate); err != nil {
		return fmt.Errorf("jail: set %q: %w", key, err)
	}
	return nil
}

// BumpChildrenMax increments children.max on the jail if children.cur has
// reached it, so one more child jail (the container's jail, when this is
// its declared parent) can be created under it.
func (j Jail) BumpChildrenMax() error {
	cur, err := j.GetUint32("children.cur")
	if err != nil {
		return err
	}
	max, err := j.GetUint32("children.max")
	if err != nil {
		return err
	}
	if cur >= max {
		return j.SetUint32("children.max", max+1)
	}
	return nil
}
