package cleaner

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ysy950803/userdbclean/internal/cleaner/conf"
	"github.com/ysy950803/userdbclean/internal/model"
)

const (
	RefreshInterval = 1000 * time.Millisecond
	infoBarHeight   = 7
)

// App is the console front end: typing the trigger string into the input
// field starts a run and the summary is shown in a modal.
type App struct {
	*tview.Application

	conf        *conf.Config
	m           *Manager
	stopRefresh chan struct{}

	mainPages *tview.Pages
	infoBar   *tview.TextView
	input     *tview.InputField
	footer    *tview.TextView
}

func NewApp(cfg *conf.Config, m *Manager) *App {
	app := &App{
		conf:        cfg,
		m:           m,
		Application: tview.NewApplication(),
		mainPages:   tview.NewPages(),
		infoBar:     tview.NewTextView().SetDynamicColors(true),
		input:       tview.NewInputField(),
		footer:      tview.NewTextView().SetDynamicColors(true),
		stopRefresh: make(chan struct{}),
	}

	app.infoBar.SetBorder(true).SetTitle(" userdbclean ")
	app.input.
		SetLabel("> ").
		SetFieldBackgroundColor(tcell.ColorDefault).
		SetDoneFunc(app.handleInput)
	app.footer.SetText(fmt.Sprintf("[gray]Type [white]%s[gray] and press Enter to clean user dictionaries. Ctrl+C to quit.", cfg.Cleaner.TriggerInput))

	return app
}

func (a *App) Run() error {
	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.infoBar, infoBarHeight, 0, false).
		AddItem(a.input, 1, 0, true).
		AddItem(a.footer, 1, 0, false)

	a.mainPages.AddPage("main", flex, true, true)
	a.SetInputCapture(a.inputCapture)
	a.updateInfo()

	go a.refresh()

	if err := a.SetRoot(a.mainPages, true).EnableMouse(false).Run(); err != nil {
		return err
	}
	return nil
}

func (a *App) Stop() {
	select {
	case <-a.stopRefresh:
	default:
		close(a.stopRefresh)
	}
	a.Application.Stop()
}

func (a *App) inputCapture(event *tcell.EventKey) *tcell.EventKey {
	if a.mainPages.HasPage("modal") && event.Key() == tcell.KeyEscape {
		a.closeModal()
		return nil
	}
	if event.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}
	return event
}

func (a *App) handleInput(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	text := a.input.GetText()
	result := a.m.Feed(text)
	switch result {
	case model.ResultStarted:
		// 触发串被消费，清空输入
		a.input.SetText("")
		a.setFooter("[green]Cleaning user dictionaries...")
	case model.ResultAlreadyRunning:
		a.input.SetText("")
		a.setFooter("[yellow]A cleaning run is already in progress.")
	default:
		a.setFooter(fmt.Sprintf("[gray]Unrecognised input %q.", text))
	}
	a.updateInfo()
}

// Present shows the summary of a finished run in a modal.
func (a *App) Present(s model.Summary) {
	text := model.Render(s)
	a.QueueUpdateDraw(func() {
		if s.State == model.StateFailed {
			a.setFooter("[red]Cleaning failed.")
		} else {
			a.setFooter("[green]Cleaning completed.")
		}
		a.showInfo(text)
		a.updateInfo()
	})
}

func (a *App) refresh() {
	tick := time.NewTicker(RefreshInterval)
	defer tick.Stop()

	for {
		select {
		case <-a.stopRefresh:
			return
		case <-tick.C:
			a.QueueUpdateDraw(a.updateInfo)
		}
	}
}

func (a *App) updateInfo() {
	st := a.m.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]User data dir:[white] %s\n", formatPathWithFallback(a.conf.UserDataDir, "auto"))
	fmt.Fprintf(&b, "[yellow]Sync dir:[white]      %s\n", formatPathWithFallback(a.conf.SyncDir, "auto"))
	fmt.Fprintf(&b, "[yellow]Filter:[white]        %s\n", formatFilter(a.conf.Cleaner.CleanupUserdbList))
	fmt.Fprintf(&b, "[yellow]HTTP:[white]          %s\n", a.conf.HTTP.Addr)
	if st.Running {
		fmt.Fprintf(&b, "[yellow]Status:[white]        [green]running[white] (%s)", st.RunID)
	} else if st.Last != nil {
		fmt.Fprintf(&b, "[yellow]Last run:[white]      %s, %d entries deleted at %s",
			st.Last.State, st.Last.DroppedEntries, st.Last.FinishedAt.Format("2006-01-02 15:04:05"))
	} else {
		b.WriteString("[yellow]Status:[white]        idle")
	}
	a.infoBar.SetText(b.String())
}

func (a *App) setFooter(text string) {
	a.footer.SetText(text)
}

// showModal 显示一个模态对话框
func (a *App) showModal(text string, buttons []string, doneFunc func(buttonIndex int, buttonLabel string)) {
	a.mainPages.RemovePage("modal")
	modal := tview.NewModal().
		SetText(text).
		AddButtons(buttons).
		SetDoneFunc(doneFunc)

	a.mainPages.AddPage("modal", modal, true, true)
	a.SetFocus(modal)
}

// showInfo 显示信息对话框
func (a *App) showInfo(text string) {
	a.showModal(text, []string{"OK"}, func(int, string) {
		a.closeModal()
	})
}

func (a *App) closeModal() {
	a.mainPages.RemovePage("modal")
	a.SetFocus(a.input)
}

func formatPathWithFallback(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func formatFilter(names []string) string {
	if len(names) == 0 {
		return "all"
	}
	return strings.Join(names, ", ")
}
