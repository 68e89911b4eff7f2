package webserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/payment"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"go.uber.org/zap"
)

// maxWebhookBody caps a delivery at 1 MiB; provider events are tiny.
const maxWebhookBody = 1 << 20

// handleWebhook receives provider notifications. The raw body is what the
// signature covers, so it is read before any parsing. A duplicate delivery
// answers 200 with the stored outcome so the provider stops retrying.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	result, err := s.processor.Handle(payload, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		if errors.Is(err, fault.Security) {
			logger.Warn("Webhook signature rejected", zap.Error(err))
		}
		writeError(w, err)
		return
	}

	if result.Grant != nil && !result.Duplicate {
		s.afterGrant(*result.Grant)
	}
	writeJSON(w, http.StatusOK, result)
}
