package email

import "sync"

// SenderFactory returns a sender authenticated with the given Postmark
// server token. Senders are cached per token.
//
// When cfg.DevOutputDir is set every token maps to a DevSender writing
// into that directory.
type SenderFactory struct {
	cfg     Config
	mu      sync.Mutex
	senders map[string]EmailSender
}

// NewSenderFactory creates a factory for per-account senders.
func NewSenderFactory(cfg Config) *SenderFactory {
	return &SenderFactory{cfg: cfg, senders: make(map[string]EmailSender)}
}

// Sender returns the sender for serverToken, creating it on first use.
func (f *SenderFactory) Sender(serverToken string) (EmailSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.senders[serverToken]; ok {
		return s, nil
	}

	var (
		s   EmailSender
		err error
	)
	if f.cfg.DevOutputDir != "" {
		s = NewDevSender(f.cfg.DevOutputDir)
	} else {
		cfg := f.cfg
		cfg.PostmarkServerToken = serverToken
		s, err = NewPostmarkClient(cfg)
		if err != nil {
			return nil, err
		}
	}

	f.senders[serverToken] = s
	return s, nil
}
