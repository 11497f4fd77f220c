package session

import (
	"fmt"
	"io"

	pkgerrors "github.com/pkg/errors"

	"github.com/zsiec/moqtcore/internal/track"
	"github.com/zsiec/moqtcore/internal/wire"
)

// PublisherHandshake drives the publisher side of the handshake (spec
// §4.D.1): SETUP advertising ROLE=PUBLISHER, expect SETUP_OK from a
// subscriber-capable peer, then one ANNOUNCE per distinct namespace.
// On success the session moves Instantiated → Running.
func (s *Session) PublisherHandshake(tracks track.Set) error {
	if err := tracks.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := s.WriteLocked(func(w io.Writer) error {
		return wire.WriteSetup(w, wire.Setup{
			Version: Version,
			Params:  wire.Params{wire.RoleParam(wire.RolePublisher)},
		})
	}); err != nil {
		return pkgerrors.Wrap(err, "session: write SETUP")
	}

	tag, err := wire.ReadTag(s.rd)
	if err != nil {
		return pkgerrors.Wrap(err, "session: read SETUP_OK tag")
	}
	if tag != wire.TagSetupOK {
		return pkgerrors.Wrapf(ErrHandshake, "unexpected tag %#x while awaiting SETUP_OK", tag)
	}
	setupOK, err := wire.ParseSetupOK(s.rd)
	if err != nil {
		return pkgerrors.Wrap(err, "session: parse SETUP_OK")
	}
	roleVal, _ := setupOK.Params.Get(wire.ParamRole)
	if len(roleVal) != 1 || (roleVal[0] != wire.RoleSubscriber && roleVal[0] != wire.RoleBoth) {
		return pkgerrors.Wrapf(ErrHandshake, "peer advertised role %v, want SUBSCRIBER or BOTH", roleVal)
	}

	for _, ns := range tracks.Namespaces() {
		authInfo := namespaceAuthInfo(tracks, ns)
		if err := s.WriteLocked(func(w io.Writer) error {
			return wire.WriteAnnounce(w, wire.Announce{
				Namespace: ns,
				Params:    wire.Params{wire.AuthInfoParam(authInfo)},
			})
		}); err != nil {
			return pkgerrors.Wrapf(err, "session: write ANNOUNCE(%s)", ns)
		}

		tag, err := wire.ReadTag(s.rd)
		if err != nil {
			return pkgerrors.Wrapf(err, "session: read ANNOUNCE_OK(%s) tag", ns)
		}
		if tag != wire.TagAnnounceOK {
			return pkgerrors.Wrapf(ErrHandshake, "unexpected tag %#x while awaiting ANNOUNCE_OK(%s)", tag, ns)
		}
		ok, err := wire.ParseAnnounceOK(s.rd)
		if err != nil {
			return pkgerrors.Wrapf(err, "session: parse ANNOUNCE_OK(%s)", ns)
		}
		if ok.Namespace != ns {
			return pkgerrors.Wrapf(ErrHandshake, "ANNOUNCE_OK namespace %q, want %q", ok.Namespace, ns)
		}
	}

	if err := s.markRunning(); err != nil {
		return err
	}
	return nil
}

// SubscriberHandshake drives the subscriber side of the handshake (spec
// §4.D.2): SETUP advertising ROLE=SUBSCRIBER, expect SETUP_OK from a
// publisher-capable peer, then one SUBSCRIBE_REQUEST per configured
// track, updating each track's assigned ID from the response.
// On success the session moves Instantiated → Running.
func (s *Session) SubscriberHandshake(tracks track.Set) error {
	if err := tracks.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := s.WriteLocked(func(w io.Writer) error {
		return wire.WriteSetup(w, wire.Setup{
			Version: Version,
			Params:  wire.Params{wire.RoleParam(wire.RoleSubscriber)},
		})
	}); err != nil {
		return pkgerrors.Wrap(err, "session: write SETUP")
	}

	tag, err := wire.ReadTag(s.rd)
	if err != nil {
		return pkgerrors.Wrap(err, "session: read SETUP_OK tag")
	}
	if tag != wire.TagSetupOK {
		return pkgerrors.Wrapf(ErrHandshake, "unexpected tag %#x while awaiting SETUP_OK", tag)
	}
	setupOK, err := wire.ParseSetupOK(s.rd)
	if err != nil {
		return pkgerrors.Wrap(err, "session: parse SETUP_OK")
	}
	roleVal, _ := setupOK.Params.Get(wire.ParamRole)
	if len(roleVal) != 1 || (roleVal[0] != wire.RolePublisher && roleVal[0] != wire.RoleBoth) {
		return pkgerrors.Wrapf(ErrHandshake, "peer advertised role %v, want PUBLISHER or BOTH", roleVal)
	}

	for _, kind := range []track.Kind{track.KindAudio, track.KindVideo, track.KindData} {
		cfg, ok := tracks[kind]
		if !ok {
			continue
		}

		if err := s.WriteLocked(func(w io.Writer) error {
			return wire.WriteSubscribeRequest(w, wire.SubscribeRequest{
				Namespace: cfg.Namespace,
				TrackName: cfg.Name,
				Params:    wire.Params{wire.AuthInfoParam(cfg.AuthInfo)},
			})
		}); err != nil {
			return pkgerrors.Wrapf(err, "session: write SUBSCRIBE_REQUEST(%s/%s)", cfg.Namespace, cfg.Name)
		}

		tag, err := wire.ReadTag(s.rd)
		if err != nil {
			return pkgerrors.Wrapf(err, "session: read SUBSCRIBE_RESPONSE(%s) tag", cfg.Name)
		}
		if tag != wire.TagSubscribeResponse {
			return pkgerrors.Wrapf(ErrHandshake, "unexpected tag %#x while awaiting SUBSCRIBE_RESPONSE(%s)", tag, cfg.Name)
		}
		resp, err := wire.ParseSubscribeResponse(s.rd)
		if err != nil {
			return pkgerrors.Wrapf(err, "session: parse SUBSCRIBE_RESPONSE(%s)", cfg.Name)
		}
		if resp.TrackName != cfg.Name {
			return pkgerrors.Wrapf(ErrHandshake, "SUBSCRIBE_RESPONSE name %q, want %q", resp.TrackName, cfg.Name)
		}
		cfg.ID = resp.TrackID
	}

	if err := s.markRunning(); err != nil {
		return err
	}
	return nil
}

// namespaceAuthInfo returns the AUTH_INFO advertised with a namespace's
// ANNOUNCE: the authInfo of the first configured track (in deterministic
// kind order) that belongs to that namespace.
func namespaceAuthInfo(tracks track.Set, namespace string) string {
	for _, kind := range []track.Kind{track.KindAudio, track.KindVideo, track.KindData} {
		cfg, ok := tracks[kind]
		if ok && cfg.Namespace == namespace {
			return cfg.AuthInfo
		}
	}
	return ""
}
