package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Rodvdev/gainz-factory-sub003/backend/growth"
	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/frontend/client"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
)

// guestCommands is a slice of Command structures containing commands that are available to users who have not signed in.
var guestCommands []Command

// userCommands is a slice of Command structures containing commands that are available only to signed in users.
var userCommands []Command

// commonCommands is a slice of Command structures containing commands that are available to all users, regardless of their sign in status.
var commonCommands []Command

// loggedIn indicates whether a user is currently signed in.
var loggedIn bool

// shell represents the interactive shell used for this application.
var shell *ishell.Shell

// The Command struct defines a user command in the system. Each command has a Name, a Desc (short for description), and a Func (the function to execute when the command is called).
type Command struct {
	Name string                  // Name is the name of the command.
	Desc string                  // Desc is a short description of what the command does.
	Func func(c *ishell.Context) // Func is the function that is executed when the command is invoked.
}

// categories lists the habit categories in the order they are offered.
var categories = []models.HabitCategory{
	models.CategoryNutrition,
	models.CategoryExercise,
	models.CategorySleep,
	models.CategoryMindset,
	models.CategoryHydration,
	models.CategoryProductivity,
	models.CategoryOther,
}

func switchToUser() {
	loggedIn = true
	for _, command := range guestCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, userCommands)
}

func switchToGuest() {
	loggedIn = false
	for _, command := range userCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, guestCommands)
}

// report prints err. An expired session also drops the shell back to the guest commands.
func report(err error) {
	if errors.Is(err, client.ErrSessionExpired) || errors.Is(err, client.ErrNotSignedIn) {
		utils.PrintError("Session expired, please sign in again by typing 'signin' in the terminal.")
		client.ClearKeyring()
		switchToGuest()
		return
	}
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		for field, reason := range verr.Fields {
			utils.PrintError(field + " " + reason)
		}
		return
	}
	utils.PrintError(err.Error())
}

// pickHabit lets the user choose one of their habits.
func pickHabit(c *ishell.Context) (*models.Habit, bool) {
	habits, err := client.Habits()
	if err != nil {
		report(err)
		return nil, false
	}
	if len(habits) == 0 {
		c.Println("You have no habits yet. Create one with 'addhabit'.")
		return nil, false
	}
	names := make([]string, len(habits))
	for i, h := range habits {
		names[i] = h.Name
	}
	choice := c.MultiChoice(names, "Which habit?")
	if choice < 0 {
		return nil, false
	}
	return habits[choice], true
}

func printHabitStatus(c *ishell.Context, s *growth.HabitStatus) {
	mark := "[ ]"
	if s.Completed {
		mark = "[x]"
	}
	c.Printf("  %s %-24s %3d pts  streak %d\n", mark, s.Habit.Name, s.Habit.Points, s.Streak)
}

func printLevel(c *ishell.Context, l *growth.LevelStatus) {
	c.Printf("Level %d (%s), %d XP", l.CurrentLevel, l.LevelName, l.TotalXP)
	if l.NextLevel != nil {
		c.Printf(", %d XP to %s (%.0f%%)", l.XPToNextLevel, l.NextLevel.Name, l.Progress*100)
	}
	c.Println()
}

// InitShell is a function that initializes the shell and its commands for the guest and user scenarios.
func InitShell() {

	// Initialize shell
	shell = ishell.New()

	// Define the commands available to a guest user (not signed in)
	guestCommands = []Command{
		{
			Name: "signin",
			Desc: "Sign in to your account",
			Func: func(c *ishell.Context) {
				var login, password string
				for {
					c.Print("Enter Username or Email: ")
					login = strings.TrimSpace(c.ReadLine())
					if login != "" {
						break
					}
					c.Println("Username cannot be empty.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()
					if len(password) > 0 {
						break
					}
					c.Println("Password cannot be empty.")
				}

				user, err := client.SignIn(login, password)
				if err != nil {
					report(err)
					return
				}
				c.Printf("Welcome back, %s.\n", user.Username)
				switchToUser()
			},
		},
		{
			Name: "signup",
			Desc: "Sign up for a new account",
			Func: func(c *ishell.Context) {
				var username, email, password string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()
					if utils.ValidateUsername(username) {
						break
					}
					c.Println("Username must be 3 to 30 letters, digits, dots or underscores.")
				}

				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()
					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()
					if !utils.ValidatePassword(password) {
						c.Println()
						c.Println("Password must be at least 8 characters and contain both letters and numbers.")
						c.Println()
						continue
					}
					c.Print("Confirm Password: ")
					if password == c.ReadPassword() {
						break
					}
					c.Println()
					c.Println("Passwords do not match. Please try again.")
					c.Println()
				}

				if _, err := client.SignUp(username, email, password); err != nil {
					report(err)
					return
				}
				c.Println("Account created successfully. You are now signed in.")
				c.Println("Please check your email and confirm your account using the 'confirm' command.")
				switchToUser()
			},
		},
	}

	// Define the commands available to a signed in user
	userCommands = []Command{
		{
			Name: "habits",
			Desc: "List your habits",
			Func: func(c *ishell.Context) {
				habits, err := client.Habits()
				if err != nil {
					report(err)
					return
				}
				if len(habits) == 0 {
					c.Println("You have no habits yet. Create one with 'addhabit'.")
					return
				}
				for _, h := range habits {
					state := ""
					if !h.IsActive {
						state = " (paused)"
					}
					c.Printf("  %-24s %-12s %3d pts  best streak %d%s\n", h.Name, h.Category, h.Points, h.LongestStreak, state)
				}
			},
		},
		{
			Name: "addhabit",
			Desc: "Create a new daily habit",
			Func: func(c *ishell.Context) {
				var input growth.HabitInput
				for {
					c.Print("Habit name: ")
					input.Name = strings.TrimSpace(c.ReadLine())
					if input.Name != "" {
						break
					}
					c.Println("Name cannot be empty.")
				}

				names := make([]string, len(categories))
				for i, cat := range categories {
					names[i] = string(cat)
				}
				choice := c.MultiChoice(names, "Category?")
				if choice < 0 {
					return
				}
				input.Category = categories[choice]

				c.Printf("Points per completion [%d]: ", growth.DefaultPoints)
				if raw := strings.TrimSpace(c.ReadLine()); raw != "" {
					points, err := strconv.Atoi(raw)
					if err != nil || points < 0 {
						c.Println("Points must be a positive number.")
						return
					}
					input.Points = points
				}

				habit, err := client.AddHabit(input)
				if err != nil {
					report(err)
					return
				}
				c.Printf("Habit '%s' created.\n", habit.Name)
			},
		},
		{
			Name: "toggle",
			Desc: "Mark a habit done (or undone) for today",
			Func: func(c *ishell.Context) {
				habit, ok := pickHabit(c)
				if !ok {
					return
				}
				completed := true
				if len(c.Args) > 0 && (c.Args[0] == "undo" || c.Args[0] == "off") {
					completed = false
				}
				res, err := client.ToggleHabit(habit.ID, completed)
				if err != nil {
					report(err)
					return
				}
				switch {
				case !res.Changed:
					c.Println("Nothing changed.")
				case res.Completed:
					c.Printf("Done! +%d points, streak %d.\n", res.PointsAwarded, res.Streak)
				default:
					c.Println("Marked as not done for today.")
				}
				if res.LeveledUp && res.Level != nil {
					c.Printf("Level up! You are now level %d (%s).\n", res.Level.CurrentLevel, res.Level.LevelName)
				}
				for _, a := range res.Unlocked {
					c.Printf("Achievement unlocked: %s (+%d XP)\n", a.Name, a.XPReward)
				}
			},
		},
		{
			Name: "dashboard",
			Desc: "Show today's habits, score and challenges",
			Func: func(c *ishell.Context) {
				d, err := client.Dashboard()
				if err != nil {
					report(err)
					return
				}
				c.Printf("Today (%s): %d of %d habits done\n", d.Day, d.CompletedCount, len(d.Habits))
				for _, s := range d.Habits {
					printHabitStatus(c, s)
				}
				if d.DailyScore != nil {
					c.Printf("Score: %d points\n", d.DailyScore.TotalPoints)
				}
				if d.Level != nil {
					printLevel(c, d.Level)
				}
				for _, ch := range d.ActiveChallenges {
					c.Printf("Challenge %s: %d/%d %s\n", ch.Title, ch.CurrentValue, ch.TargetValue, ch.Unit)
				}
			},
		},
		{
			Name: "level",
			Desc: "Show your level and XP",
			Func: func(c *ishell.Context) {
				level, err := client.Level()
				if err != nil {
					report(err)
					return
				}
				printLevel(c, level)
			},
		},
		{
			Name: "weekly",
			Desc: "Show your progress over the last seven days",
			Func: func(c *ishell.Context) {
				w, err := client.Weekly()
				if err != nil {
					report(err)
					return
				}
				for _, day := range w.Days {
					c.Printf("  %s  %4d pts  %s\n", day.Day, day.TotalPoints, strings.Repeat("#", day.CompletedHabits))
				}
				c.Printf("Total %d points over %d active days\n", w.TotalPoints, w.ActiveDays)
				if w.BestDay != nil {
					c.Printf("Best day: %s\n", *w.BestDay)
				}
			},
		},
		{
			Name: "confirm",
			Desc: "Confirm your account with the code sent to your email",
			Func: func(c *ishell.Context) {
				c.Print("Enter the confirmation code from your email: ")
				if err := client.ConfirmEmail(strings.TrimSpace(c.ReadLine())); err != nil {
					report(err)
					return
				}
				c.Println("Email confirmed.")
			},
		},
		{
			Name: "updatemyacc",
			Desc: "Update your username, email or password",
			Func: func(c *ishell.Context) {
				c.Print("Enter Current Password: ")
				currentPassword := c.ReadPassword()
				c.Print("New Username (leave empty to keep): ")
				newUsername := strings.TrimSpace(c.ReadLine())
				c.Print("New Email (leave empty to keep): ")
				newEmail := strings.TrimSpace(c.ReadLine())
				c.Print("New Password (leave empty to keep): ")
				newPassword := c.ReadPassword()

				if err := client.UpdateUser(currentPassword, newUsername, newEmail, newPassword); err != nil {
					report(err)
					return
				}
				c.Println("Account updated successfully.")
			},
		},
		{
			Name: "signout",
			Desc: "Sign out from your account",
			Func: func(c *ishell.Context) {
				if err := client.SignOut(); err != nil {
					report(err)
					return
				}
				c.Println("You are now signed out.")
				switchToGuest()
			},
		},
		{
			Name: "deletemyacc",
			Desc: "Delete your account",
			Func: func(c *ishell.Context) {
				c.Print("Are you sure you want to delete your account? (yes/no): ")
				if strings.ToLower(strings.TrimSpace(c.ReadLine())) != "yes" {
					return
				}
				c.Print("Enter Password: ")
				if err := client.DeleteUser(c.ReadPassword()); err != nil {
					report(err)
					return
				}
				c.Println("Account deleted successfully.")
				switchToGuest()
			},
		},
	}

	// Define common commands that are always available, regardless of sign in state
	commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				fmt.Println("Goodbye!")
				os.Exit(0)
			},
		},
	}

	// The help command is created separately to avoid the cyclic dependency
	commonCommands = append(commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			commands := guestCommands
			if loggedIn {
				commands = userCommands
			}
			for _, command := range append(commands, commonCommands...) {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})
}

// addCommands is a helper function that adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

// Execute welcomes the user, adds the commands matching the stored session and runs the shell.
func Execute() {
	shell.Println()
	figure.NewFigure("Gainz", "basic", true).Print()
	shell.Println("Welcome to Gainz Factory -- track your habits from the terminal. Type 'help' to see a list of commands.")

	addCommands(shell, commonCommands)
	if client.IsSignedIn() {
		loggedIn = true
		addCommands(shell, userCommands)
	} else {
		addCommands(shell, guestCommands)
	}

	shell.Run()
}
