package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms/openai"

	"trivia-quiz-system/gateway"
	"trivia-quiz-system/handlers"
	"trivia-quiz-system/metrics"
	"trivia-quiz-system/middleware"
	"trivia-quiz-system/services"
	"trivia-quiz-system/utils"
	"trivia-quiz-system/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	gameTable := mustGetenv("GAME_TABLE")
	questionTable := mustGetenv("QUESTION_TABLE")
	tokenTable := mustGetenv("TOKEN_TABLE")
	queueURL := mustGetenv("GENERATION_QUEUE_URL")
	identityBaseURL := mustGetenv("IDENTITY_BASE_URL")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsConfig, err := utils.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatal("failed to load AWS config:", err)
	}
	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	sqsClient := sqs.NewFromConfig(awsConfig)

	queue := gateway.NewGenerationQueue(sqsClient, queueURL)
	gw := gateway.NewDynamoGateway(dynamoClient, queue, gameTable, questionTable)
	tokenCache := gateway.NewTokenCache(dynamoClient, tokenTable)

	identity := services.NewIdentityClient(identityBaseURL)
	sessions := services.NewSessionService(gw)

	// The OpenAI client reads OPENAI_API_KEY (and optional OPENAI_MODEL)
	// from the environment.
	llm, err := openai.New()
	if err != nil {
		log.Fatal("failed to create OpenAI client:", err)
	}
	designer := services.NewDesigner(llm, services.NewWikipediaClient())

	generationWorker := workers.NewGenerationWorker(sqsClient, queueURL, gw, designer)
	go generationWorker.Run(ctx)

	services.StartTokenSweeper(tokenCache)

	metricsServer := metrics.SetupServer()
	go metricsServer.Run()

	app := fiber.New()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.TrimSpace(allowedOrigins),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	playerCtx := middleware.PlayerContext(tokenCache, identity)
	handlers.SetupGameRoutes(app, sessions, playerCtx)

	go func() {
		if err := app.Listen(":5200"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5200")
	log.Println("✅ Question generation worker running")
	log.Println("✅ Metrics available on http://localhost:6060/metrics")

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func mustGetenv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("%s environment variable not set", key)
	}
	return value
}
