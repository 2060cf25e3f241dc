// Package tui is the terminal front end. It renders the three triage
// lists plus the chat panel and drives the services through keybindings.
package tui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/jvaldes/scout-tui/internal/bus"
	"github.com/jvaldes/scout-tui/internal/services"
	"github.com/jvaldes/scout-tui/internal/store"
	"github.com/jvaldes/scout-tui/internal/stream"
)

// Mailer delivers one outbound message, either through the user's own
// mailbox or the backend's mail service.
type Mailer interface {
	SendMessage(ctx context.Context, to, subject, body string) (string, error)
}

// Services bundles everything the app needs injected.
type Services struct {
	Contacts  services.ContactService
	Drafts    services.DraftService
	History   services.HistoryService
	Templates services.TemplateService
	Undo      services.UndoService
	Chat      *stream.ChatController
	Draft     *stream.DraftController
	Mailer    Mailer
}

// App is the tview application with its panels.
type App struct {
	*tview.Application

	userID   string
	services Services
	bus      *bus.Bus
	logger   *log.Logger

	pages      *tview.Pages
	shortlist  *tview.List
	sent       *tview.List
	trash      *tview.List
	chatView   *tview.TextView
	chatInput  *tview.InputField
	statusBar  *tview.TextView
	focusOrder []tview.Primitive

	// contacts mirrors the last loaded document lists, indexed in the
	// same order as the list widgets.
	contacts store.UserContacts

	unsubscribe []func()
}

// NewApp wires the panels together.
func NewApp(userID string, svcs Services, eventBus *bus.Bus) *App {
	a := &App{
		Application: tview.NewApplication(),
		userID:      userID,
		services:    svcs,
		bus:         eventBus,
		pages:       tview.NewPages(),
	}

	a.shortlist = newContactList("Shortlist")
	a.sent = newContactList("Sent")
	a.trash = newContactList("Trash")

	a.chatView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	a.chatView.SetBorder(true).SetTitle(" Chat ")

	a.chatInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldBackgroundColor(tcell.ColorDefault)
	a.chatInput.SetBorder(true).SetTitle(" Ask ")

	a.statusBar = tview.NewTextView().SetDynamicColors(true)
	a.statusBar.SetText(" ready")

	lists := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(a.shortlist, 0, 1, true).
		AddItem(a.sent, 0, 1, false).
		AddItem(a.trash, 0, 1, false)

	chat := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.chatInput, 3, 0, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(lists, 0, 3, true).
			AddItem(chat, 0, 2, false), 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.pages.AddPage("main", root, true, true)
	a.focusOrder = []tview.Primitive{a.shortlist, a.sent, a.trash, a.chatInput}

	a.bindKeys()
	a.SetRoot(a.pages, true)
	return a
}

// SetLogger sets the logger for debug output
func (a *App) SetLogger(logger *log.Logger) {
	a.logger = logger
}

func newContactList(title string) *tview.List {
	l := tview.NewList().ShowSecondaryText(true)
	l.SetBorder(true).SetTitle(fmt.Sprintf(" %s ", title))
	return l
}

// Run starts the event loop. It subscribes to the bus, loads the initial
// document, and blocks until the user quits.
func (a *App) Run(ctx context.Context) error {
	a.subscribe(ctx)
	defer a.shutdown()

	a.services.Chat.OnUpdate(func() {
		a.QueueUpdateDraw(a.renderChat)
	})

	go a.reload(ctx)

	return a.Application.Run()
}

func (a *App) subscribe(ctx context.Context) {
	contacts, stopContacts := a.bus.SubscribeContacts()
	toasts, stopToasts := a.bus.SubscribeToasts()
	a.unsubscribe = append(a.unsubscribe, stopContacts, stopToasts)

	go func() {
		for range contacts {
			a.reload(ctx)
		}
	}()
	go func() {
		for t := range toasts {
			msg := t.Message
			level := t.Level
			a.QueueUpdateDraw(func() {
				a.setStatus(fmt.Sprintf("[%s] %s", level, msg))
			})
		}
	}()
}

func (a *App) shutdown() {
	for _, stop := range a.unsubscribe {
		stop()
	}
	a.services.Chat.CancelStream()
	a.services.Draft.CancelStream()
}

// reload fetches the document and redraws the three lists.
func (a *App) reload(ctx context.Context) {
	uc, err := a.services.Contacts.GetUserContacts(ctx, a.userID)
	if err != nil {
		a.logf("reload contacts: %v", err)
		a.QueueUpdateDraw(func() {
			a.setStatus("could not load contacts: " + err.Error())
		})
		return
	}
	a.QueueUpdateDraw(func() {
		a.contacts = *uc
		fillList(a.shortlist, uc.Shortlist)
		fillList(a.sent, uc.Sent)
		fillList(a.trash, uc.Trash)
	})
}

func fillList(l *tview.List, contacts []store.Contact) {
	current := l.GetCurrentItem()
	l.Clear()
	for _, c := range contacts {
		secondary := c.Company
		if c.Position != "" {
			secondary = strings.TrimSpace(c.Position + " · " + c.Company)
		}
		l.AddItem(c.DisplayName(), secondary, 0, nil)
	}
	if current < l.GetItemCount() {
		l.SetCurrentItem(current)
	}
}

func (a *App) bindKeys() {
	a.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if a.GetFocus() == a.chatInput {
			if ev.Key() == tcell.KeyEscape {
				a.SetFocus(a.shortlist)
				return nil
			}
			return ev
		}

		switch ev.Key() {
		case tcell.KeyTab:
			a.cycleFocus()
			return nil
		case tcell.KeyEscape:
			a.Stop()
			return nil
		}

		switch ev.Rune() {
		case 'q':
			a.Stop()
		case '/':
			a.SetFocus(a.chatInput)
		case 't':
			a.onSelected(func(ctx context.Context, c store.Contact) (*services.Reversal, error) {
				return a.services.Contacts.MoveToTrash(ctx, a.userID, c)
			})
		case 's':
			a.onSelected(func(ctx context.Context, c store.Contact) (*services.Reversal, error) {
				return a.services.Contacts.MoveToSent(ctx, a.userID, c)
			})
		case 'r':
			a.onSelected(func(ctx context.Context, c store.Contact) (*services.Reversal, error) {
				return a.services.Contacts.RestoreFromTrash(ctx, a.userID, c)
			})
		case 'd':
			a.onSelected(func(ctx context.Context, c store.Contact) (*services.Reversal, error) {
				return a.services.Contacts.BulkDeletePermanent(ctx, a.userID, []string{c.Key()})
			})
		case 'e':
			a.sendDraft()
		case 'u':
			go a.undo()
		case 'x':
			a.services.Chat.CancelStream()
		default:
			return ev
		}
		return nil
	})

	a.chatInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.chatInput.GetText()
		a.chatInput.SetText("")
		go a.sendChat(text)
	})
}

func (a *App) cycleFocus() {
	current := a.GetFocus()
	for i, p := range a.focusOrder {
		if p == current {
			a.SetFocus(a.focusOrder[(i+1)%len(a.focusOrder)])
			return
		}
	}
	a.SetFocus(a.focusOrder[0])
}

// selectedContact maps the focused list and its highlighted row back to
// the mirrored document state.
func (a *App) selectedContact() (store.Contact, bool) {
	var seq []store.Contact
	var l *tview.List
	switch a.GetFocus() {
	case a.shortlist:
		l, seq = a.shortlist, a.contacts.Shortlist
	case a.sent:
		l, seq = a.sent, a.contacts.Sent
	case a.trash:
		l, seq = a.trash, a.contacts.Trash
	default:
		return store.Contact{}, false
	}
	i := l.GetCurrentItem()
	if i < 0 || i >= len(seq) {
		return store.Contact{}, false
	}
	return seq[i], true
}

// onSelected runs a contact mutation off the UI goroutine and records
// the reversal for undo.
func (a *App) onSelected(op func(context.Context, store.Contact) (*services.Reversal, error)) {
	c, ok := a.selectedContact()
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		r, err := op(ctx, c)
		if err != nil {
			a.logf("contact op failed: %v", err)
			a.QueueUpdateDraw(func() { a.setStatus("operation failed: " + err.Error()) })
			return
		}
		if !r.Empty() {
			_ = a.services.Undo.RecordReversal(r)
			desc := r.Description
			a.QueueUpdateDraw(func() { a.setStatus(desc + " (u to undo)") })
		}
	}()
}

// sendDraft mails the saved draft for the selected contact and moves it
// to sent. Falls back to the contact's rendered template when no draft
// exists.
func (a *App) sendDraft() {
	if a.services.Mailer == nil {
		a.setStatus("no mail transport configured")
		return
	}
	c, ok := a.selectedContact()
	if !ok || c.Key() == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		subject, body := "", ""
		if drafts, err := a.services.Drafts.GetDrafts(ctx, a.userID); err == nil {
			if d, ok := drafts[c.Key()]; ok {
				subject, body = d.Subject, d.Body
			}
		}
		if body == "" && c.Template != "" {
			if templates, err := a.services.Templates.ListTemplates(ctx, a.userID); err == nil {
				for _, t := range templates {
					if t.Name == c.Template {
						subject, body = a.services.Templates.Render(t, c)
						break
					}
				}
			}
		}
		if body == "" {
			a.QueueUpdateDraw(func() { a.setStatus("no draft to send for " + c.DisplayName()) })
			return
		}

		if _, err := a.services.Mailer.SendMessage(ctx, c.Key(), subject, body); err != nil {
			a.logf("send draft: %v", err)
			a.QueueUpdateDraw(func() { a.setStatus("send failed: " + err.Error()) })
			return
		}
		if r, err := a.services.Contacts.MoveToSent(ctx, a.userID, c); err == nil && !r.Empty() {
			_ = a.services.Undo.RecordReversal(r)
		}
		a.QueueUpdateDraw(func() { a.setStatus("sent to " + c.DisplayName()) })
	}()
}

func (a *App) undo() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	res, err := a.services.Undo.UndoLast(ctx, a.userID)
	if err != nil {
		a.QueueUpdateDraw(func() { a.setStatus("undo failed: " + err.Error()) })
		return
	}
	msg := "nothing to undo"
	if res.Success {
		msg = "undid " + res.Description
	}
	a.QueueUpdateDraw(func() { a.setStatus(msg) })
}

func (a *App) sendChat(text string) {
	err := a.services.Chat.SendMessage(context.Background(), text)
	if err != nil && !services.IsCancelled(err) {
		a.logf("chat send: %v", err)
	}
}

// renderChat redraws the chat panel from a snapshot. Runs on the UI
// goroutine.
func (a *App) renderChat() {
	snap := a.services.Chat.Snapshot()
	var sb strings.Builder
	for _, m := range snap.Messages {
		switch m.Role {
		case stream.RoleUser:
			fmt.Fprintf(&sb, "[yellow]you:[-] %s\n", tview.Escape(m.Content))
		case stream.RoleAssistant:
			cursor := ""
			if m.IsStreaming {
				cursor = "▋"
			}
			fmt.Fprintf(&sb, "[green]scout:[-] %s%s\n", tview.Escape(m.Content), cursor)
			if m.ToolResult != nil && m.ToolResult.Success {
				fmt.Fprintf(&sb, "  [blue]%d contacts found[-]\n", m.ToolResult.ResultCount)
			}
		}
	}
	a.chatView.SetText(sb.String())
	a.chatView.ScrollToEnd()

	if snap.Status != nil {
		a.setStatus(snap.Status.Message)
	} else if !snap.Streaming {
		a.setStatus("ready")
	}
}

func (a *App) setStatus(msg string) {
	a.statusBar.SetText(" " + msg)
}

func (a *App) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
