package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Controller runs user commands against a page.
type Controller struct {
	identity IdentityService
	catalog  StoryCatalog
	storage  LocalStorage
	pages    *PageStore
	log      *slog.Logger
}

func NewController(identity IdentityService, catalog StoryCatalog, storage LocalStorage, pages *PageStore, log *slog.Logger) *Controller {
	return &Controller{
		identity: identity,
		catalog:  catalog,
		storage:  storage,
		pages:    pages,
		log:      log,
	}
}

// Command is one user action. It runs with the page locked.
type Command struct {
	Name string
	Run  func(ctx context.Context, c *Controller, p *Page) error
}

// Dispatch loads the client's page if needed, then runs cmd on it.
// A failed command leaves its alert on the page.
func (c *Controller) Dispatch(ctx context.Context, clientID string, cmd Command) error {
	p := c.pages.Get(clientID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := c.load(ctx, p); err != nil {
			p.Alert = alertFor(err)
			return err
		}
	}

	err := cmd.Run(ctx, c, p)
	if err != nil {
		p.Alert = alertFor(err)
		c.log.Warn("command failed", "command", cmd.Name, "client", clientID, "err", err)
		return err
	}
	c.log.Debug("command done", "command", cmd.Name, "client", clientID, "mode", p.Mode.String())
	return nil
}

// View renders the client's page, loading it first if needed, and consumes
// its pending alert.
func (c *Controller) View(ctx context.Context, clientID string) View {
	p := c.pages.Get(clientID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := c.load(ctx, p); err != nil {
			p.Alert = alertFor(err)
		}
	}

	v := Render(p)
	v.Alert = p.takeAlert()
	return v
}

// load restores the session from local storage and fetches the roster.
func (c *Controller) load(ctx context.Context, p *Page) error {
	token, err := c.storage.GetItem(ctx, p.ClientID, storageKeyToken)
	if err != nil {
		return err
	}
	username, err := c.storage.GetItem(ctx, p.ClientID, storageKeyUsername)
	if err != nil {
		return err
	}

	user, err := c.identity.GetLoggedInUser(ctx, token, username)
	if err != nil {
		c.log.Warn("restoring session", "client", p.ClientID, "username", username, "err", err)
		user = nil
	}
	p.User = user

	if err := c.generateStories(ctx, p); err != nil {
		return err
	}
	p.loaded = true
	return nil
}

func (c *Controller) generateStories(ctx context.Context, p *Page) error {
	stories, err := c.catalog.GetStories(ctx)
	if err != nil {
		return err
	}
	p.Roster = stories
	p.Mode = ModeAll
	return nil
}

func (c *Controller) startSession(ctx context.Context, p *Page, user *User) error {
	p.User = user
	if err := c.storage.SetItem(ctx, p.ClientID, storageKeyToken, user.LoginToken); err != nil {
		return err
	}
	if err := c.storage.SetItem(ctx, p.ClientID, storageKeyUsername, user.Username); err != nil {
		return err
	}
	p.hideForms()
	p.Mode = ModeAll
	return nil
}

const minPasswordLength = 8

// validPassword measures length in UTF-16 code units, the way browsers
// report a form field's length.
func validPassword(fl validator.FieldLevel) bool {
	return len(utf16.Encode([]rune(fl.Field().String()))) >= minPasswordLength
}

type registerForm struct {
	Name     string `validate:"required"`
	Username string `validate:"required"`
	Password string `validate:"password"`
}

func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "password" {
				return fmt.Errorf("%w: %w", ErrPasswordTooShort, err)
			}
		}
	}
	return fmt.Errorf("%w: %w", ErrInvalidForm, err)
}

func LoginCommand(username, password string) Command {
	return Command{Name: "login", Run: func(ctx context.Context, c *Controller, p *Page) error {
		user, err := c.identity.Login(ctx, username, password)
		if err != nil {
			return err
		}
		return c.startSession(ctx, p, user)
	}}
}

func RegisterCommand(username, password, name string) Command {
	return Command{Name: "register", Run: func(ctx context.Context, c *Controller, p *Page) error {
		form := registerForm{Name: name, Username: username, Password: password}
		if err := validateForm(form); err != nil {
			return err
		}
		user, err := c.identity.Create(ctx, username, password, name)
		if err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrUsernameTaken, err)
		}
		return c.startSession(ctx, p, user)
	}}
}

// LogoutCommand wipes local storage and reloads the page.
func LogoutCommand() Command {
	return Command{Name: "logout", Run: func(ctx context.Context, c *Controller, p *Page) error {
		if err := c.storage.Clear(ctx, p.ClientID); err != nil {
			return err
		}
		p.reset()
		return c.load(ctx, p)
	}}
}

func SubmitStoryCommand(story NewStory) Command {
	return Command{Name: "submit story", Run: func(ctx context.Context, c *Controller, p *Page) error {
		if p.User == nil {
			return ErrNotLoggedIn
		}
		if err := validateForm(story); err != nil {
			return err
		}
		p.ShowSubmitForm = false

		added, err := c.catalog.AddStory(ctx, p.User, story)
		if err != nil {
			return err
		}
		p.User.OwnStories = append(p.User.OwnStories, added)
		if p.Mode != ModeFavorites {
			p.Roster = append([]Story{added}, p.Roster...)
		}
		return nil
	}}
}

func ToggleFavoriteCommand(storyID string) Command {
	return Command{Name: "toggle favorite", Run: func(ctx context.Context, c *Controller, p *Page) error {
		if p.User == nil {
			return ErrFavoriteNeedsLogin
		}
		known := lo.Flatten([][]Story{p.Roster, p.User.OwnStories, p.User.Favorites})
		_, err := p.User.ToggleFavorite(ctx, c.identity, storyID, known)
		return err
	}}
}

func DeleteStoryCommand(storyID string) Command {
	return Command{Name: "delete story", Run: func(ctx context.Context, c *Controller, p *Page) error {
		if p.User == nil {
			return ErrNotLoggedIn
		}
		if err := p.User.DeleteStory(ctx, c.identity, storyID); err != nil {
			return err
		}
		p.Roster = lo.Reject(p.Roster, func(s Story, _ int) bool { return s.ID == storyID })
		return nil
	}}
}

func SwitchTabCommand(tab string) Command {
	return Command{Name: "switch tab", Run: func(ctx context.Context, c *Controller, p *Page) error {
		mode, err := parseViewMode(tab)
		if err != nil {
			return fmt.Errorf("%w: %q", err, tab)
		}
		if mode != ModeAll && p.User == nil {
			return ErrNotLoggedIn
		}

		p.hideForms()
		if mode == ModeAll {
			return c.generateStories(ctx, p)
		}
		p.Mode = mode
		return nil
	}}
}

// ToggleAuthFormsCommand opens or closes the login and create-account forms.
func ToggleAuthFormsCommand() Command {
	return Command{Name: "toggle auth forms", Run: func(_ context.Context, _ *Controller, p *Page) error {
		p.ShowAuthForms = !p.ShowAuthForms
		return nil
	}}
}

func ToggleSubmitFormCommand() Command {
	return Command{Name: "toggle submit form", Run: func(_ context.Context, _ *Controller, p *Page) error {
		if p.User == nil {
			return ErrNotLoggedIn
		}
		p.ShowSubmitForm = !p.ShowSubmitForm
		return nil
	}}
}
