package model

import "github.com/charmbracelet/bubbles/key"

// ServerEntry is a row of the Config panel.
type ServerEntry struct {
	Name     string
	Endpoint string
	Version  string
	// Managed names the service that discovered the server, empty for
	// servers from the config file.
	Managed string
	Active  bool
}

func (s ServerEntry) Key() string { return s.Name }

// ConfigPanel lists the configured and discovered servers.
type ConfigPanel struct {
	all     []ServerEntry
	Servers Container[ServerEntry]
	Filter  Filter
	Popup   Popup
}

// SetServers replaces the server list.
func (p *ConfigPanel) SetServers(entries []ServerEntry) {
	p.all = entries
	p.refilter()
}

// markActive flags name as the active server.
func (p *ConfigPanel) markActive(name string) {
	for i := range p.all {
		p.all[i].Active = p.all[i].Name == name
	}
	p.refilter()
}

func (p *ConfigPanel) refilter() {
	p.Servers.SetItems(apply(p.Filter, p.all, nil, func(s ServerEntry) []string {
		return []string{s.Name, s.Endpoint, s.Managed}
	}))
}

// Update handles ev for the Config panel.
func (p *ConfigPanel) Update(ev Event) (*Event, []Command) {
	if p.Popup.handleHelp(ev) {
		return nil, nil
	}
	if consumed, changed := p.Filter.handle(ev); consumed {
		if changed {
			p.refilter()
		}
		return nil, nil
	}
	if ev.IsTick() {
		return fallback(ev)
	}
	if navigate(&p.Servers, ev) || p.Filter.start(ev) {
		return nil, nil
	}
	switch {
	case key.Matches(ev, Keys.Help):
		p.Popup = Popup{Kind: PopupHelp}
		return nil, nil
	case key.Matches(ev, Keys.Enter):
		srv, ok := p.Servers.Selected()
		if !ok {
			return nil, nil
		}
		return &ev, []Command{SwitchServer{Server: srv.Name}}
	case key.Matches(ev, Keys.Open):
		srv, ok := p.Servers.Selected()
		if !ok {
			return nil, nil
		}
		return nil, []Command{OpenInBrowser{ServerName: srv.Name}}
	}
	return fallback(ev)
}

func (p *ConfigPanel) clone() ConfigPanel {
	out := *p
	out.all = append([]ServerEntry(nil), p.all...)
	out.Servers = p.Servers.Clone()
	return out
}
