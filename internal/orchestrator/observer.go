package orchestrator

import (
	"envbench/internal/client"
	"envbench/internal/trial"
)

// Observer receives run events in order. All methods are called from the
// orchestrator goroutine except RequestCompleted, which is called from the
// trial collector goroutine while a trial is running.
type Observer interface {
	RunStarted(report *Report)
	EnvironmentProbed(state EnvironmentState)
	TrialStarted(spec trial.Spec)
	RequestCompleted(spec trial.Spec, sample client.RequestSample)
	TrialFinished(result *trial.Result)
	GroupFinished(group GroupSummary)
	RunFinished(report *Report)
}

// BaseObserver implements Observer with no-ops. Embed it to handle only
// some events.
type BaseObserver struct{}

func (BaseObserver) RunStarted(*Report) {}
func (BaseObserver) EnvironmentProbed(EnvironmentState) {}
func (BaseObserver) TrialStarted(trial.Spec) {}
func (BaseObserver) RequestCompleted(trial.Spec, client.RequestSample) {}
func (BaseObserver) TrialFinished(*trial.Result) {}
func (BaseObserver) GroupFinished(GroupSummary) {}
func (BaseObserver) RunFinished(*Report) {}

type observers []Observer

func (o observers) RunStarted(report *Report) {
	for _, obs := range o {
		obs.RunStarted(report)
	}
}

func (o observers) EnvironmentProbed(state EnvironmentState) {
	for _, obs := range o {
		obs.EnvironmentProbed(state)
	}
}

func (o observers) TrialStarted(spec trial.Spec) {
	for _, obs := range o {
		obs.TrialStarted(spec)
	}
}

func (o observers) RequestCompleted(spec trial.Spec, sample client.RequestSample) {
	for _, obs := range o {
		obs.RequestCompleted(spec, sample)
	}
}

func (o observers) TrialFinished(result *trial.Result) {
	for _, obs := range o {
		obs.TrialFinished(result)
	}
}

func (o observers) GroupFinished(group GroupSummary) {
	for _, obs := range o {
		obs.GroupFinished(group)
	}
}

func (o observers) RunFinished(report *Report) {
	for _, obs := range o {
		obs.RunFinished(report)
	}
}
