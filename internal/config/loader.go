package config

import "github.com/taskscheduler/engine/internal/env"

func loadInto(v any) error {
	return env.Load(v)
}
