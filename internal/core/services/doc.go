// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// RankingEngine performs late-fusion scoring and tie grouping,
// RetrievalService composes filtering, ranking and hydration, and
// SettingsService maps the config store onto domain.AppSettings.
//
// Services are pure Go with no CGO or external dependencies.
package services
