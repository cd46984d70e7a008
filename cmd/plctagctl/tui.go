package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"plctag"
)

// Status glyphs, narrowed from teacher's tui/styles.go down to the
// handful this single-table browser needs.
const (
	statusOK    = "[green]●[-]"
	statusIdle  = "[gray]○[-]"
	statusError = "[red]●[-]"
)

// App is a single-screen tag browser/monitor over a Registry. Grounded
// on teacher's tui.App shape (tview.Application plus a background
// refresh goroutine feeding QueueUpdateDraw) and tui/tagpicker.go's
// PLC-then-tag listing, narrowed from the multi-tab PLC/MQTT/Valkey/
// Kafka/rules/packs/debug application down to one table: this is a tag
// browser and trigger console, not a second configuration UI.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	reg    *plctag.Registry
	table  *tview.Table
	status *tview.TextView

	tags []*plctag.Tag

	refreshEvery time.Duration
	opTimeout    time.Duration
	stop         chan struct{}
}

const mainPage = "main"

// NewApp builds a tag-browser App over reg.
func NewApp(reg *plctag.Registry) *App {
	a := &App{
		app:          tview.NewApplication(),
		pages:        tview.NewPages(),
		reg:          reg,
		table:        tview.NewTable(),
		status:       tview.NewTextView(),
		refreshEvery: time.Second,
		opTimeout:    5 * time.Second,
		stop:         make(chan struct{}),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.table.SetBorders(false).SetSelectable(true, false).SetFixed(1, 0)
	a.status.SetText("r: read   w: write   a: abort   q: quit")
	a.status.SetDynamicColors(true)

	a.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		row, _ := a.table.GetSelection()
		tag := a.tagForRow(row)
		switch event.Rune() {
		case 'r', 'R':
			a.trigger(tag, a.doRead)
			return nil
		case 'w', 'W':
			a.showWriteForm(tag)
			return nil
		case 'a', 'A':
			a.trigger(tag, a.doAbort)
			return nil
		case 'q', 'Q':
			a.app.Stop()
			return nil
		}
		return event
	})

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.table, 0, 1, true).
		AddItem(a.status, 1, 0, false)
	a.pages.AddPage(mainPage, layout, true, true)
	a.app.SetRoot(a.pages, true).SetFocus(a.table)
}

// showWriteForm pops a modal input over the table to collect a new
// value for tag, then triggers the write on submit. Grounded on the
// shape of teacher's tui/browser.go edit forms (a tview.Form overlaid
// on a Pages stack, torn down on submit or Escape).
func (a *App) showWriteForm(tag *plctag.Tag) {
	if tag == nil {
		return
	}
	const formPage = "write-form"

	form := tview.NewForm()
	form.SetBorder(true).SetTitle(fmt.Sprintf("Write %s", tag.Name()))
	form.AddInputField("Value", "", 30, nil, nil)
	form.AddButton("Write", func() {
		text := form.GetFormItemByLabel("Value").(*tview.InputField).GetText()
		a.pages.RemovePage(formPage)
		a.app.SetFocus(a.table)
		a.trigger(tag, a.doWrite(text))
	})
	form.AddButton("Cancel", func() {
		a.pages.RemovePage(formPage)
		a.app.SetFocus(a.table)
	})

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(form, 50, 1, true).
			AddItem(nil, 0, 1, false), 9, 1, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage(formPage, modal, true, true)
	a.app.SetFocus(form)
}

func (a *App) tagForRow(row int) *plctag.Tag {
	idx := row - 1 // header row
	if idx < 0 || idx >= len(a.tags) {
		return nil
	}
	return a.tags[idx]
}

func (a *App) trigger(tag *plctag.Tag, op func(context.Context, *plctag.Tag) error) {
	if tag == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.opTimeout)
		defer cancel()
		err := op(ctx, tag)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.status.SetText(fmt.Sprintf("[red]%v[-]", err))
			} else {
				a.status.SetText("r: read   w: write   a: abort   q: quit")
			}
			a.render()
		})
	}()
}

func (a *App) doRead(ctx context.Context, tag *plctag.Tag) error { return tag.Read(ctx) }
func (a *App) doAbort(_ context.Context, tag *plctag.Tag) error  { return tag.Abort() }

func (a *App) doWrite(text string) func(context.Context, *plctag.Tag) error {
	return func(ctx context.Context, tag *plctag.Tag) error {
		if err := writeScalar(tag, text); err != nil {
			return err
		}
		return tag.Write(ctx)
	}
}

// Run starts the background refresh loop and blocks until the user
// quits.
func (a *App) Run() error {
	a.render()
	go a.refreshLoop()
	err := a.app.Run()
	close(a.stop)
	return err
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(a.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.render)
		}
	}
}

func (a *App) render() {
	a.tags = a.reg.Tags()
	headers := []string{"ID", "Name", "Gateway", "Status", "Value", "Type"}
	for col, h := range headers {
		cell := tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold)
		a.table.SetCell(0, col, cell)
	}
	for row, t := range a.tags {
		value, typeName := t.ExportValue()
		a.table.SetCell(row+1, 0, tview.NewTableCell(fmt.Sprintf("%d", t.ID())))
		a.table.SetCell(row+1, 1, tview.NewTableCell(t.Name()))
		a.table.SetCell(row+1, 2, tview.NewTableCell(t.Gateway()))
		a.table.SetCell(row+1, 3, tview.NewTableCell(statusGlyph(t.Status())+" "+t.Status().String()))
		a.table.SetCell(row+1, 4, tview.NewTableCell(fmt.Sprintf("%v", value)))
		a.table.SetCell(row+1, 5, tview.NewTableCell(typeName))
	}
}

func statusGlyph(s plctag.OperationState) string {
	switch s {
	case plctag.StatusOK:
		return statusOK
	case plctag.StatusPending:
		return statusIdle
	default:
		return statusError
	}
}
