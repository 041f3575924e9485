package agent

import "github.com/docuflow/waagent/pkg/logging"

// strategy is one alternative technique for an operation. Chains are tried
// in order; the first success wins and failures are logged data, never
// propagated.
type strategy struct {
	name string
	run  func() error
}

// runChain tries each strategy in order and reports whether one succeeded.
func runChain(log *logging.Logger, op string, chain []strategy) bool {
	for _, s := range chain {
		if err := s.run(); err != nil {
			log.Debugf("%s: %s failed: %v", op, s.name, err)
			continue
		}
		log.Debugf("%s: %s succeeded", op, s.name)
		return true
	}
	return false
}

// fileStrategy is a strategy that yields a local file path on success.
type fileStrategy struct {
	name string
	run  func() (string, error)
}

// runFileChain tries each strategy in order, returning the first path
// produced. The empty string means every strategy failed.
func runFileChain(log *logging.Logger, op string, chain []fileStrategy) string {
	for _, s := range chain {
		path, err := s.run()
		if err != nil {
			log.Debugf("%s: %s failed: %v", op, s.name, err)
			continue
		}
		if path == "" {
			log.Debugf("%s: %s produced no file", op, s.name)
			continue
		}
		log.Infof("%s: %s succeeded: %s", op, s.name, path)
		return path
	}
	return ""
}
