package seeders

import (
	"log"
	"time"

	"learnhub_go/models"
	"learnhub_go/utils"

	"gorm.io/gorm"
)

// SeedAll runs all seeders
func SeedAll(db *gorm.DB) {
	log.Println("Starting database seeding...")

	SeedUsers(db)
	SeedCourses(db)

	log.Println("Database seeding completed successfully!")
}

// SeedUsers creates the admin plus one demo account per role.
func SeedUsers(db *gorm.DB) {
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	hashedPassword, err := utils.HashPassword("password123")
	if err != nil {
		log.Printf("Error hashing seed password: %v", err)
		return
	}

	users := []models.User{
		{Name: "Administrator", Email: "admin@learnhub.local", Role: models.RoleAdmin},
		{Name: "Demo Teacher", Email: "teacher@learnhub.local", Role: models.RoleTeacher},
		{Name: "Demo Student", Email: "student@learnhub.local", Role: models.RoleStudent},
		{Name: "Demo Parent", Email: "parent@learnhub.local", Role: models.RoleParent},
	}

	for i := range users {
		users[i].Password = hashedPassword
		users[i].Active = true
		if err := db.Create(&users[i]).Error; err != nil {
			log.Printf("Error seeding user %s: %v", users[i].Email, err)
		}
	}

	link := models.ParentStudent{ParentID: users[3].ID, StudentID: users[2].ID, Relationship: "guardian"}
	if err := db.Create(&link).Error; err != nil {
		log.Printf("Error seeding parent link: %v", err)
	}

	log.Println("Users seeded successfully")
}

// SeedCourses creates a demo course with material, an assignment and a session.
func SeedCourses(db *gorm.DB) {
	var count int64
	db.Model(&models.Course{}).Count(&count)
	if count > 0 {
		log.Println("Courses already seeded, skipping...")
		return
	}

	var teacher models.User
	if err := db.Where("role = ?", models.RoleTeacher).First(&teacher).Error; err != nil {
		log.Printf("No teacher to own seeded courses: %v", err)
		return
	}

	now := time.Now().UTC()
	course := models.Course{
		Title:        "Introduction to Programming",
		Description:  "Variables, control flow and functions.",
		Price:        49,
		MaxStudents:  30,
		InstructorID: teacher.ID,
		Active:       true,
	}
	if err := db.Create(&course).Error; err != nil {
		log.Printf("Error seeding course: %v", err)
		return
	}

	contents := []models.Content{
		{CourseID: course.ID, Title: "Welcome", Type: models.ContentText, Body: "Read this first.", OrderIndex: 1, Published: true},
		{CourseID: course.ID, Title: "Setup guide", Type: models.ContentLink, URL: "https://go.dev/doc/install", OrderIndex: 2, Published: true},
	}
	if err := db.Create(&contents).Error; err != nil {
		log.Printf("Error seeding contents: %v", err)
	}

	assignment := models.Assignment{
		CourseID:  course.ID,
		Title:     "Hello world",
		Type:      "homework",
		DueDate:   now.AddDate(0, 0, 7),
		MaxPoints: 10,
		CreatedBy: teacher.ID,
	}
	if err := db.Create(&assignment).Error; err != nil {
		log.Printf("Error seeding assignment: %v", err)
	}

	session := models.ClassSession{
		CourseID:  course.ID,
		Title:     "Kick-off",
		StartTime: now.Add(48 * time.Hour),
		EndTime:   now.Add(49 * time.Hour),
		Status:    models.SessionScheduled,
	}
	if err := db.Create(&session).Error; err != nil {
		log.Printf("Error seeding session: %v", err)
	}

	log.Println("Courses seeded successfully")
}
