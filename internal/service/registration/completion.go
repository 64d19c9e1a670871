package registration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/farmsense/cava/backend/internal/model/registration"
)

// complete validates the profile once more and writes the farmer record.
// On success the session is COMPLETE and carries the record id.
func (s *Service) complete(ctx context.Context, sess *registration.Session) (registration.FarmerRecord, error) {
	if sess.State != registration.StateConfirming {
		return registration.FarmerRecord{}, registration.ErrNotConfirming
	}
	if err := registration.ValidateProfile(sess.Profile); err != nil {
		s.logger.Info("profile rejected at completion",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return registration.FarmerRecord{}, err
	}

	now := s.now()
	rec := registration.NewFarmerRecord(s.newID(), sess, now)

	id, err := s.farmers.SaveFarmerRecord(ctx, rec)
	if err != nil {
		if !errors.Is(err, registration.ErrPersistenceUnavailable) {
			err = fmt.Errorf("%w: %v", registration.ErrPersistenceUnavailable, err)
		}
		s.logger.Error("failed to save farmer record",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return registration.FarmerRecord{}, err
	}

	rec.ID = id
	sess.RecordID = id
	sess.Transition(registration.StateComplete, now)

	s.logger.Info("farmer registered",
		zap.String("session_id", sess.ID),
		zap.String("farmer_id", id),
	)
	return rec, nil
}
