package invitation

import "time"

func SetClock(s *Service, now func() time.Time) { s.now = now }

func SetCodeGenerator(s *Service, gen func() (string, error)) { s.newCode = gen }
